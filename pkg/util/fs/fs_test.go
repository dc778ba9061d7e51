package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Unable to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Unable to write file: %v", err)
		}
	}
}

func TestCopyPreservesStructure(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "src")
	writeFiles(t, src, map[string]string{
		"memos/__init__.py":             "",
		"memos/api/__init__.py":         "",
		"memos/api/server_api.py":       "app = object()\n",
		"memos/api/routers/start.py":    "# router\n",
		"memos/__pycache__/api.cpython": "binary",
		"requirements.txt":              "fastapi\n",
	})

	fs := NewFileSystem()
	ignored := func(rel string) bool { return strings.HasSuffix(rel, "__pycache__") }
	if err := fs.Copy(src, dst, ignored); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, f := range []string{"memos/api/server_api.py", "memos/api/routers/start.py", "requirements.txt"} {
		if !fs.Exists(filepath.Join(dst, f)) {
			t.Errorf("Expected %s to be copied", f)
		}
	}
	if fs.Exists(filepath.Join(dst, "memos/__pycache__")) {
		t.Errorf("Expected ignored directory not to be copied")
	}
}

func TestCopyOverwrites(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, map[string]string{"memos/api/server_api.py": "new\n"})
	writeFiles(t, dst, map[string]string{"memos/api/server_api.py": "old content that is longer\n"})

	if err := NewFileSystem().Copy(src, dst, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "memos/api/server_api.py"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(data) != "new\n" {
		t.Errorf("Expected destination to be overwritten, got %q", data)
	}
}

func TestCopyMissingSource(t *testing.T) {
	err := NewFileSystem().Copy(filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil)
	if err == nil {
		t.Errorf("Expected an error copying a missing source")
	}
}
