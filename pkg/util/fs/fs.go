package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// FileSystem allows the bootstrap to manipulate the local filesystem.
type FileSystem interface {
	Chmod(file string, mode os.FileMode) error
	Rename(from, to string) error
	MkdirAll(dirname string) error
	Exists(file string) bool
	Stat(path string) (os.FileInfo, error)
	Copy(sourcePath, targetPath string, isIgnored func(string) bool) error
	RemoveDirectory(dir string) error
	CreateWorkingDirectory() (string, error)
	Open(file string) (io.ReadCloser, error)
	ReadFile(file string) ([]byte, error)
	WriteFile(file string, data []byte) error
}

// NewFileSystem creates a new instance of the default FileSystem
// implementation
func NewFileSystem() FileSystem {
	return &fs{}
}

type fs struct{}

// Chmod sets the file mode
func (h *fs) Chmod(file string, mode os.FileMode) error {
	return os.Chmod(file, mode)
}

// Rename renames or moves a file
func (h *fs) Rename(from, to string) error {
	return os.Rename(from, to)
}

// MkdirAll creates the directory and all its parents
func (h *fs) MkdirAll(dirname string) error {
	return os.MkdirAll(dirname, 0755)
}

// Exists determines whether the given file exists
func (h *fs) Exists(file string) bool {
	_, err := os.Stat(file)
	return err == nil
}

// Stat returns a FileInfo describing the named file.
func (h *fs) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Copy copies the source to a destination, keeping the relative structure of
// directories. Existing files at the destination are overwritten. isIgnored
// receives paths relative to sourcePath; it may be nil.
func (h *fs) Copy(sourcePath, targetPath string, isIgnored func(string) bool) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return err
		}
		return copyFile(sourcePath, targetPath, info.Mode())
	}

	return filepath.Walk(sourcePath, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourcePath, path)
		if err != nil {
			return err
		}
		if rel != "." && isIgnored != nil && isIgnored(filepath.ToSlash(rel)) {
			log.V(5).Infof("Skipping ignored path %s", rel)
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(targetPath, rel)

		switch {
		case fi.IsDir():
			return os.MkdirAll(target, fi.Mode().Perm()|0700)
		case fi.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		case fi.Mode().IsRegular():
			return copyFile(path, target, fi.Mode())
		default:
			log.V(4).Infof("Skipping special file %s", path)
			return nil
		}
	})
}

func copyFile(source, target string, mode os.FileMode) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// RemoveDirectory removes the specified directory and all its contents
func (h *fs) RemoveDirectory(dir string) error {
	log.V(2).Infof("Removing directory '%s'", dir)

	err := os.RemoveAll(dir)
	if err != nil {
		log.Errorf("Error removing directory '%s': %v", dir, err)
	}
	return err
}

// CreateWorkingDirectory creates a directory to be used for the build context
func (h *fs) CreateWorkingDirectory() (directory string, err error) {
	directory, err = os.MkdirTemp("", "memos-bootstrap")
	if err != nil {
		return "", fmt.Errorf("error creating temporary directory: %v", err)
	}

	return directory, err
}

// Open opens a file and returns a ReadCloser interface to that file
func (h *fs) Open(filename string) (io.ReadCloser, error) {
	return os.Open(filename)
}

// ReadFile reads the whole file
func (h *fs) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// WriteFile opens a file and writes data to it, returning error if such
// occurred
func (h *fs) WriteFile(filename string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
