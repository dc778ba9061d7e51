package layered

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/docker/docker/api/types"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/docker"
	"github.com/memtensor/memos-bootstrap/pkg/docker/test"
	memoserr "github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
)

func newProject(t *testing.T) string {
	project := t.TempDir()
	for name, content := range map[string]string{
		"src/memos/__init__.py":           "",
		"src/memos/api/__init__.py":       "",
		"src/memos/api/server_api.py":     "app = object()\n",
		"src/memos/api/__pycache__/x.pyc": "",
		".memosignore":                    "__pycache__/\n",
	} {
		path := filepath.Join(project, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return project
}

func newFakeLayered(t *testing.T, client *test.FakeDockerClient, config *api.Config) *Layered {
	l, err := New(docker.New(client, api.AuthConfig{}), config, fs.NewFileSystem())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	l.output = io.Discard
	return l
}

func tarEntries(t *testing.T, data []byte) map[string]bool {
	entries := map[string]bool{}
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Unable to read build context: %v", err)
		}
		entries[filepath.ToSlash(filepath.Clean(hdr.Name))] = true
	}
	return entries
}

func TestBuildOK(t *testing.T) {
	client := test.NewFakeDockerClient()
	config := api.NewConfig()
	config.Source = newProject(t)
	client.Images[config.BaseImage] = types.ImageInspect{ID: "sha256:base"}

	result, err := newFakeLayered(t, client, config).Build(context.Background(), config)
	if err != nil {
		t.Fatalf("Unexpected error returned: %v", err)
	}
	if !result.Success || result.State != api.BuildSucceeded {
		t.Errorf("Expected a successful build, got %#v", result)
	}
	if result.ImageID != "sha256:1234" || result.Tag != "memos:latest" {
		t.Errorf("Unexpected image %q tagged %q", result.ImageID, result.Tag)
	}

	entries := tarEntries(t, client.BuildContext)
	for _, name := range []string{"Dockerfile", "src/memos/api/server_api.py", "src/memos/__init__.py"} {
		if !entries[name] {
			t.Errorf("Expected %s in the build context, got %v", name, entries)
		}
	}
	if entries["src/memos/api/__pycache__/x.pyc"] {
		t.Errorf("Expected ignored files to be left out of the build context")
	}

	var stages []api.StageName
	for _, s := range result.BuildInfo.Stages {
		stages = append(stages, s.StageName)
	}
	expected := []api.StageName{api.StagePullImages, api.StagePrepareSource, api.StageCreateDockerfile, api.StageBuild}
	if !reflect.DeepEqual(stages, expected) {
		t.Errorf("Expected stages %v, got %v", expected, stages)
	}
	if _, err := os.Stat(config.BuildDir); !os.IsNotExist(err) {
		t.Errorf("Expected the build directory to be removed")
	}
}

func TestBuildPreserveBuildDir(t *testing.T) {
	client := test.NewFakeDockerClient()
	config := api.NewConfig()
	config.Source = newProject(t)
	config.PreserveBuildDir = true
	client.Images[config.BaseImage] = types.ImageInspect{ID: "sha256:base"}

	if _, err := newFakeLayered(t, client, config).Build(context.Background(), config); err != nil {
		t.Fatalf("Unexpected error returned: %v", err)
	}
	defer os.RemoveAll(config.BuildDir)
	if _, err := os.Stat(filepath.Join(config.BuildDir, "Dockerfile")); err != nil {
		t.Errorf("Expected the build directory to be kept: %v", err)
	}
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(client *test.FakeDockerClient, config *api.Config)
		code   int
		reason api.StepFailureReason
		stages int
	}{
		{
			name: "base image unresolved",
			setup: func(client *test.FakeDockerClient, config *api.Config) {
				client.PullFail = errors.New("manifest unknown")
			},
			code:   memoserr.BaseImageUnresolvedError,
			reason: "BaseImageUnresolved",
			stages: 1,
		},
		{
			name: "source missing",
			setup: func(client *test.FakeDockerClient, config *api.Config) {
				client.Images[config.BaseImage] = types.ImageInspect{ID: "sha256:base"}
				config.Source = filepath.Join(config.Source, "missing")
			},
			code:   memoserr.SourceCopyFailedError,
			reason: "SourceCopyFailed",
			stages: 2,
		},
		{
			name: "build error",
			setup: func(client *test.FakeDockerClient, config *api.Config) {
				client.Images[config.BaseImage] = types.ImageInspect{ID: "sha256:base"}
				client.BuildImageErr = errors.New("no space left on device")
			},
			code:   memoserr.BuildImageError,
			reason: "DockerImageBuildFailed",
			stages: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := test.NewFakeDockerClient()
			config := api.NewConfig()
			config.Source = newProject(t)
			tt.setup(client, config)

			result, err := newFakeLayered(t, client, config).Build(context.Background(), config)
			if !memoserr.Is(err, tt.code) {
				t.Fatalf("Expected error code %d, got %v", tt.code, err)
			}
			if result.Success || result.State != api.BuildFailed || len(result.Tag) > 0 {
				t.Errorf("Expected a failed build without tag, got %#v", result)
			}
			if result.BuildInfo.FailureReason.Reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, result.BuildInfo.FailureReason.Reason)
			}
			if len(result.BuildInfo.Stages) != tt.stages {
				t.Errorf("Expected %d stages, got %d", tt.stages, len(result.BuildInfo.Stages))
			}
		})
	}
}
