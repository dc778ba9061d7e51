package create

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/launch"
	"github.com/memtensor/memos-bootstrap/pkg/util"
)

func TestBootstrapResolvesApp(t *testing.T) {
	dir := t.TempDir()
	config := api.NewConfig()
	b := New("memos", dir, config)
	if err := b.AddSource(); err != nil {
		t.Fatal(err)
	}
	if err := b.AddConfig(); err != nil {
		t.Fatal(err)
	}

	location, err := launch.ResolveModule([]string{filepath.Join(dir, "src")}, "memos.api.server_api")
	if err != nil {
		t.Fatalf("Expected the scaffold module to resolve: %v", err)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "app = FastAPI(") {
		t.Errorf("Expected %s to define app, got:\n%s", location, data)
	}
	if !strings.Contains(string(data), `RedirectResponse(url="/docs", status_code=307)`) {
		t.Errorf("Expected the root redirect in %s", location)
	}

	for _, f := range []string{
		"src/memos/__init__.py",
		"src/memos/api/__init__.py",
		"src/requirements.txt",
		".memosignore",
		".env.example",
		".memos/" + util.MetadataFilename,
	} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("Expected %s to exist: %v", f, err)
		}
	}

	env, err := util.EnvironmentFromFile(filepath.Join(dir, ".env.example"))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := env.Lookup("MOS_CHUNK_SIZE"); !ok || v != "512" {
		t.Errorf("Expected MOS_CHUNK_SIZE=512, got %q", v)
	}

	metadata, err := util.ProcessImageMetadataFile(filepath.Join(dir, ".memos"))
	if err != nil {
		t.Fatalf("Expected valid image metadata: %v", err)
	}
	if metadata == nil {
		t.Errorf("Expected image metadata content")
	}
}

func TestBootstrapCustomTarget(t *testing.T) {
	dir := t.TempDir()
	config := api.NewConfig()
	config.AppTarget = "service.main:application"
	b := New("svc", dir, config)
	if err := b.AddSource(); err != nil {
		t.Fatal(err)
	}
	location, err := launch.ResolveModule([]string{filepath.Join(dir, "src")}, "service.main")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(location)
	if !strings.Contains(string(data), "service.main:application") {
		t.Errorf("Expected the target in the module description, got:\n%s", data)
	}
}

func TestBootstrapNestedPackages(t *testing.T) {
	dir := t.TempDir()
	config := api.NewConfig()
	config.AppTarget = "memos.api.v1.server_api:app"
	if err := New("memos", dir, config).AddSource(); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{
		"src/memos/__init__.py",
		"src/memos/api/__init__.py",
		"src/memos/api/v1/__init__.py",
		"src/memos/api/v1/server_api.py",
	} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("Expected %s to exist: %v", f, err)
		}
	}
	for _, f := range []string{
		"src/memos/__init__.py/__init__.py",
		"src/memos/__init__.py.py",
		"src/memos/api/__init__.py.py",
	} {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			t.Errorf("Unexpected file %s", f)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "src", "memos", "api", "v1", "__init__.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "memos.api.v1") {
		t.Errorf("Expected the package name in __init__.py, got:\n%s", data)
	}
}

func TestBootstrapKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "src", "memos", "api", "server_api.py")
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("app = object()\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := New("memos", dir, api.NewConfig()).AddSource(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "app = object()\n" {
		t.Errorf("Expected existing module to be kept, got %q", data)
	}
}
