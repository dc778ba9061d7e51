package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMatch(t *testing.T) {
	m, err := Parse(strings.NewReader(`
# compiled files
__pycache__
*.pyc
/tests/
.env
!keep.pyc
memos/api/*.bak
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := map[string]bool{
		"__pycache__":                 true,
		"memos/__pycache__":           true,
		"memos/api/server_api.pyc":    true,
		"memos/api/keep.pyc":          false,
		"tests":                       true,
		"memos/tests":                 true,
		".env":                        true,
		"memos/api/server_api.py":     false,
		"memos/api/server_api.py.bak": true,
		"memos/api/routers/start.bak": false,
		"requirements.txt":            false,
	}
	for path, want := range tests {
		if got := m.Match(path); got != want {
			t.Errorf("Match(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewMatcherMissingFile(t *testing.T) {
	m, err := NewMatcher(filepath.Join(t.TempDir(), ".memosignore"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !m.Empty() || m.Match("anything") {
		t.Errorf("Expected an empty matcher for a missing file")
	}
}

func TestNewMatcherFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".memosignore")
	if err := os.WriteFile(p, []byte("*.log\n"), 0644); err != nil {
		t.Fatalf("Unable to write ignore file: %v", err)
	}
	m, err := NewMatcher(p)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !m.Match("memos/server.log") {
		t.Errorf("Expected *.log to match nested log files")
	}
}
