package ignore

import (
	"bufio"
	"io"
	"os"
	"path"
	"strings"

	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

type fileSpec struct {
	glob    string
	inverse bool
}

// Matcher decides which source files are left out of the copied tree. It
// follows .dockerignore rules: globs are matched with path.Match against the
// slash separated relative path, '#' starts a comment and '!' re-includes
// a previously excluded path. The last matching spec wins. A glob without a
// slash also matches the base name at any depth.
type Matcher struct {
	specs []fileSpec
}

// NewMatcher reads the ignore file at ignorePath. A missing file yields a
// matcher that ignores nothing.
func NewMatcher(ignorePath string) (Matcher, error) {
	file, err := os.Open(ignorePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorf("Ignore processing, problem opening %s because of %v\n", ignorePath, err)
			return Matcher{}, err
		}
		log.V(4).Infof("%s file does not exist", ignorePath)
		return Matcher{}, nil
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads ignore specs from r.
func Parse(r io.Reader) (Matcher, error) {
	var specs []fileSpec
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		filespec := strings.TrimSpace(scanner.Text())

		if len(filespec) == 0 || strings.HasPrefix(filespec, "#") {
			continue
		}

		log.V(4).Infof("ignore file lists a file spec of %s", filespec)

		inverse := false
		if strings.HasPrefix(filespec, "!") {
			inverse = true
			filespec = strings.TrimPrefix(filespec, "!")
		}
		filespec = strings.TrimSuffix(strings.TrimPrefix(filespec, "/"), "/")
		if len(filespec) == 0 {
			continue
		}
		specs = append(specs, fileSpec{glob: filespec, inverse: inverse})
	}

	if err := scanner.Err(); err != nil {
		log.Errorf("Problem processing ignore file %v", err)
		return Matcher{}, err
	}
	return Matcher{specs: specs}, nil
}

// Match reports whether the slash separated path, relative to the directory
// holding the ignore file, is ignored.
func (m Matcher) Match(rel string) bool {
	var matches bool
	base := path.Base(rel)
	for _, spec := range m.specs {
		ok, _ := path.Match(spec.glob, rel)
		if !ok && !strings.Contains(spec.glob, "/") {
			ok, _ = path.Match(spec.glob, base)
		}
		if ok {
			matches = !spec.inverse
		}
	}
	return matches
}

// Empty reports whether the matcher has no specs.
func (m Matcher) Empty() bool {
	return len(m.specs) == 0
}
