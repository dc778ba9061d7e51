package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/scm/git"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// File represents a project that lives on the local file system.
type File struct {
	FS fs.FileSystem
}

// Download checks that the local project and its source directory exist. The
// project is used in place; the source directory is copied into the build
// context later.
func (f *File) Download(ctx context.Context, config *api.Config) (string, *api.SourceInfo, error) {
	dir := strings.TrimPrefix(config.Source, "file://")
	if len(config.ContextDir) > 0 {
		dir = filepath.Join(dir, filepath.FromSlash(config.ContextDir))
	}

	info, err := f.FS.Stat(dir)
	if err != nil {
		return "", nil, errors.NewSourceCopyFailedError(dir, err)
	}
	if !info.IsDir() {
		return "", nil, errors.NewSourceCopyFailedError(dir, fmt.Errorf("%s is not a directory", dir))
	}

	srcDir := filepath.Join(dir, filepath.FromSlash(config.SourceDir))
	if info, err := f.FS.Stat(srcDir); err != nil {
		return "", nil, errors.NewSourceCopyFailedError(srcDir, err)
	} else if !info.IsDir() {
		return "", nil, errors.NewSourceCopyFailedError(srcDir, fmt.Errorf("%s is not a directory", srcDir))
	}

	log.V(1).Infof("Using local project %q", dir)
	return dir, git.LocalSourceInfo(dir), nil
}
