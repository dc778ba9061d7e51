// Package test holds helpers shared by the tests of several packages.
package test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author signs the commits of CreateLocalGitRepository.
var Author = object.Signature{
	Name:  "Memos Tester",
	Email: "tester@example.com",
	When:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

// CreateLocalGitRepository initializes a repository in a new temporary
// directory, writes files into it and commits them on the main branch with
// message. It returns the directory and the commit hash.
func CreateLocalGitRepository(t *testing.T, files map[string]string, message string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("Unable to init repository: %v", err)
	}
	hash := CommitFiles(t, repo, dir, files, message)
	return dir, hash
}

// CommitFiles writes files into the work tree of repo and commits them.
func CommitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, message string) string {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(files[name]), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("Unable to add %s: %v", name, err)
		}
	}
	author := Author
	hash, err := wt.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		t.Fatalf("Unable to commit: %v", err)
	}
	return hash.String()
}
