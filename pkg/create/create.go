// Package create writes a minimal project that the bootstrap can build and
// launch.
package create

import (
	"bytes"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	"github.com/memtensor/memos-bootstrap/pkg/create/templates"
	"github.com/memtensor/memos-bootstrap/pkg/util"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// Bootstrap defines parameters for the template processing
type Bootstrap struct {
	DestinationDir string
	Name           string
	Module         string
	Attribute      string
	SourceDir      string

	fs fs.FileSystem
}

// New returns a new bootstrap for the given project and application target.
func New(name, dst string, config *api.Config) *Bootstrap {
	rc := config.RuntimeConfig()
	return &Bootstrap{
		DestinationDir: dst,
		Name:           name,
		Module:         rc.Module(),
		Attribute:      rc.Attribute(),
		SourceDir:      config.SourceDir,
		fs:             fs.NewFileSystem(),
	}
}

// AddSource creates the application module and its parent packages.
func (b *Bootstrap) AddSource() error {
	parts := strings.Split(b.Module, ".")
	srcDir := filepath.Join(b.DestinationDir, filepath.FromSlash(b.SourceDir))

	for i := 1; i < len(parts); i++ {
		pkg := strings.Join(parts[:i], ".")
		elems := append([]string{srcDir}, parts[:i]...)
		dst := filepath.Join(append(elems, "__init__.py")...)
		if err := b.process(templates.PackageInit, dst, map[string]string{"Package": pkg}); err != nil {
			return err
		}
	}
	module := filepath.Join(append([]string{srcDir}, parts...)...) + ".py"
	if err := b.process(templates.ServerAPI, module, b); err != nil {
		return err
	}
	return b.process(templates.Requirements, filepath.Join(srcDir, constants.DefaultRequirementsFile), b)
}

// AddConfig creates the ignore file, the settings example and the image
// metadata.
func (b *Bootstrap) AddConfig() error {
	files := map[string]string{
		constants.DefaultIgnoreFile: templates.IgnoreFile,
		".env.example":              templates.EnvExample,
		filepath.Join(constants.SourceConfig, util.MetadataFilename): templates.ImageMetadata,
	}
	for name, t := range files {
		if err := b.process(t, filepath.Join(b.DestinationDir, name), b); err != nil {
			return err
		}
	}
	return nil
}

// process renders t into dst. Existing files are kept.
func (b *Bootstrap) process(t string, dst string, data interface{}) error {
	if b.fs.Exists(dst) {
		log.V(1).Infof("Keeping existing %s", dst)
		return nil
	}
	tpl := template.Must(template.New("").Parse(t))
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return err
	}
	if err := b.fs.WriteFile(dst, buf.Bytes()); err != nil {
		log.Errorf("Unable to create %s: %v", dst, err)
		return err
	}
	log.V(2).Infof("Created %s", dst)
	return nil
}
