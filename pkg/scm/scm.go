package scm

import (
	"context"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/scm/file"
	"github.com/memtensor/memos-bootstrap/pkg/scm/git"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
)

// Downloader fetches the project and returns its local directory along with
// the source information used for labels.
type Downloader interface {
	Download(ctx context.Context, config *api.Config) (string, *api.SourceInfo, error)
}

// DownloaderForSource determines what SCM plugin should be used for downloading
// the sources from the repository.
func DownloaderForSource(fileSystem fs.FileSystem, s string) Downloader {
	if git.ValidCloneSpec(s) {
		return &git.Clone{FS: fileSystem}
	}
	return &file.File{FS: fileSystem}
}
