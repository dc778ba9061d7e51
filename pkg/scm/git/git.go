// Package git fetches project sources from git repositories with go-git and
// extracts the commit information recorded in image labels.
package git

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	memoserr "github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// scpLikeURL matches "user@host:path" clone specs.
var scpLikeURL = regexp.MustCompile(`^(?:[A-Za-z0-9_.-]+@)?[A-Za-z0-9_.-]+:[^/\\].*$`)

var remoteSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"git":   true,
	"ssh":   true,
}

// ValidCloneSpec reports whether source names a remote git repository.
func ValidCloneSpec(source string) bool {
	if u, err := url.Parse(source); err == nil && remoteSchemes[u.Scheme] && len(u.Host) > 0 {
		return true
	}
	if strings.HasPrefix(source, "file://") {
		return strings.HasSuffix(source, ".git")
	}
	if _, err := os.Stat(source); err == nil {
		return false
	}
	return scpLikeURL.MatchString(source)
}

// Clone downloads remote repositories into the build directory.
type Clone struct {
	FS fs.FileSystem
}

// Download clones config.Source into config.BuildDir and checks out
// config.Ref. It returns the project directory (honouring ContextDir) and
// the commit information.
func (c *Clone) Download(ctx context.Context, config *api.Config) (string, *api.SourceInfo, error) {
	target := filepath.Join(config.BuildDir, "upload", "repo")
	if err := c.FS.MkdirAll(target); err != nil {
		return "", nil, err
	}
	log.V(1).Infof("Cloning %q into %q", config.Source, target)

	opts := &git.CloneOptions{URL: config.Source}
	if len(config.Ref) == 0 {
		opts.Depth = 1
	}
	if log.Is(2) {
		opts.Progress = os.Stderr
	}

	repo, err := git.PlainCloneContext(ctx, target, false, opts)
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return "", nil, memoserr.NewEmptyGitRepositoryError(config.Source)
		}
		return "", nil, fmt.Errorf("failed to clone %s: %w", config.Source, err)
	}

	if len(config.Ref) > 0 {
		log.V(1).Infof("Checking out ref %s", config.Ref)
		if err := checkout(repo, config.Ref); err != nil {
			return "", nil, err
		}
	}

	info := SourceInfo(repo)
	if info != nil {
		info.Location = config.Source
		info.ContextDir = config.ContextDir
		if len(config.Ref) > 0 {
			info.Ref = config.Ref
		}
	}

	dir := target
	if len(config.ContextDir) > 0 {
		dir = filepath.Join(target, filepath.FromSlash(config.ContextDir))
	}
	return dir, info, nil
}

func checkout(repo *git.Repository, ref string) error {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		// remote branches are only known as origin/<ref> after a clone
		hash, err = repo.ResolveRevision(plumbing.Revision("origin/" + ref))
		if err != nil {
			return fmt.Errorf("invalid git ref %q: %w", ref, err)
		}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true})
}

// SourceInfo returns commit information for the HEAD of repo, or nil when it
// cannot be determined.
func SourceInfo(repo *git.Repository) *api.SourceInfo {
	head, err := repo.Head()
	if err != nil {
		log.V(3).Infof("Unable to read HEAD: %v", err)
		return nil
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		log.V(3).Infof("Unable to read commit %s: %v", head.Hash(), err)
		return nil
	}
	message := strings.TrimSpace(commit.Message)
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	if len(message) > 80 {
		message = message[:80]
	}
	info := &api.SourceInfo{
		CommitID:    head.Hash().String(),
		Date:        commit.Author.When.Format("Mon Jan 2 15:04:05 2006 -0700"),
		AuthorName:  commit.Author.Name,
		AuthorEmail: commit.Author.Email,
		Message:     message,
	}
	if head.Name().IsBranch() {
		info.Ref = head.Name().Short()
	}
	return info
}

// LocalSourceInfo returns commit information for a local directory that is
// part of a git work tree, or nil.
func LocalSourceInfo(dir string) *api.SourceInfo {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil
	}
	info := SourceInfo(repo)
	if info != nil {
		if abs, err := filepath.Abs(dir); err == nil {
			info.Location = abs
		}
	}
	return info
}
