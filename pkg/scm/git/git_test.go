package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	memoserr "github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/test"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
)

var appFiles = map[string]string{
	"service/src/memos/__init__.py":       "",
	"service/src/memos/api/__init__.py":   "",
	"service/src/memos/api/server_api.py": "app = None\n",
	"service/src/requirements.txt":        "fastapi\n",
	"README.md":                           "memos\n",
}

func TestValidCloneSpec(t *testing.T) {
	local := t.TempDir()
	valid := []string{
		"https://github.com/MemTensor/MemOS",
		"https://github.com/MemTensor/MemOS.git",
		"http://example.com:8080/memos.git",
		"git://example.com/memos.git",
		"ssh://git@example.com/memos.git",
		"git@github.com:MemTensor/MemOS.git",
		"file:///srv/git/memos.git",
	}
	invalid := []string{
		local,
		"./src",
		"file:///srv/project",
		"https://",
		"/tmp/memos.git",
	}
	for _, s := range valid {
		if !ValidCloneSpec(s) {
			t.Errorf("Expected %q to be a valid clone spec", s)
		}
	}
	for _, s := range invalid {
		if ValidCloneSpec(s) {
			t.Errorf("Expected %q to be an invalid clone spec", s)
		}
	}
}

func TestSourceInfo(t *testing.T) {
	long := "Add the server entry point\n\nBody of the commit message."
	dir, hash := test.CreateLocalGitRepository(t, appFiles, long)

	info := LocalSourceInfo(filepath.Join(dir, "service", "src"))
	if info == nil {
		t.Fatal("Expected source information")
	}
	if info.CommitID != hash {
		t.Errorf("Expected commit %s, got %s", hash, info.CommitID)
	}
	if info.Message != "Add the server entry point" {
		t.Errorf("Expected the first line of the message, got %q", info.Message)
	}
	if info.AuthorName != test.Author.Name || info.AuthorEmail != test.Author.Email {
		t.Errorf("Unexpected author %s <%s>", info.AuthorName, info.AuthorEmail)
	}
	if info.Ref != "main" {
		t.Errorf("Expected ref main, got %q", info.Ref)
	}
	if info.Location != filepath.Join(dir, "service", "src") {
		t.Errorf("Unexpected location %q", info.Location)
	}

	if LocalSourceInfo(t.TempDir()) != nil {
		t.Errorf("Expected no source information outside a work tree")
	}
}

func TestSourceInfoTruncatesMessage(t *testing.T) {
	dir, _ := test.CreateLocalGitRepository(t, appFiles, strings.Repeat("x", 120))
	info := LocalSourceInfo(dir)
	if info == nil || len(info.Message) != 80 {
		t.Errorf("Expected an 80 character message, got %+v", info)
	}
}

func requireGit(t *testing.T) {
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		t.Skip("git-upload-pack is not available")
	}
}

func TestDownload(t *testing.T) {
	requireGit(t)
	dir, first := test.CreateLocalGitRepository(t, appFiles, "first")

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		t.Fatal(err)
	}
	second := test.CommitFiles(t, repo, dir, map[string]string{"service/src/memos/api/extra.py": ""}, "second")

	tests := []struct {
		name       string
		ref        string
		contextDir string
		commit     string
		exists     string
		missing    string
	}{
		{name: "head", commit: second, exists: "README.md"},
		{name: "context dir", contextDir: "service", commit: second, exists: "src/memos/api/extra.py"},
		{name: "commit ref", ref: first, contextDir: "service", commit: first, exists: "src/memos/api/server_api.py", missing: "src/memos/api/extra.py"},
		{name: "branch ref", ref: "main", commit: second, exists: "service/src/memos/api/extra.py"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := &api.Config{
				Source:     "file://" + dir,
				Ref:        tc.ref,
				ContextDir: tc.contextDir,
				BuildDir:   t.TempDir(),
			}
			c := &Clone{FS: fs.NewFileSystem()}
			projectDir, info, err := c.Download(context.Background(), config)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if _, err := os.Stat(filepath.Join(projectDir, tc.exists)); err != nil {
				t.Errorf("Expected %s in %s: %v", tc.exists, projectDir, err)
			}
			if len(tc.missing) > 0 {
				if _, err := os.Stat(filepath.Join(projectDir, tc.missing)); !os.IsNotExist(err) {
					t.Errorf("Expected %s to be absent at %s", tc.missing, tc.ref)
				}
			}
			if info == nil || info.CommitID != tc.commit {
				t.Fatalf("Expected commit %s, got %+v", tc.commit, info)
			}
			if info.Location != config.Source || info.ContextDir != tc.contextDir {
				t.Errorf("Unexpected source information %+v", info)
			}
		})
	}
}

func TestDownloadErrors(t *testing.T) {
	requireGit(t)
	dir, _ := test.CreateLocalGitRepository(t, appFiles, "first")

	config := &api.Config{Source: "file://" + dir, Ref: "does-not-exist", BuildDir: t.TempDir()}
	if _, _, err := (&Clone{FS: fs.NewFileSystem()}).Download(context.Background(), config); err == nil {
		t.Errorf("Expected an error for an unknown ref")
	}

	empty := t.TempDir()
	if _, err := gogit.PlainInitWithOptions(empty, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.Main},
	}); err != nil {
		t.Fatal(err)
	}
	config = &api.Config{Source: "file://" + empty, BuildDir: t.TempDir()}
	_, _, err := (&Clone{FS: fs.NewFileSystem()}).Download(context.Background(), config)
	if !memoserr.Is(err, memoserr.EmptyGitRepositoryError) {
		t.Errorf("Expected an empty repository error, got %v", err)
	}
}
