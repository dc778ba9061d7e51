//go:build integration && !nodocker

package integration

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies"
	"github.com/memtensor/memos-bootstrap/pkg/create"
	"github.com/memtensor/memos-bootstrap/pkg/docker"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/run"
)

const (
	TagCleanBuild     = "memos-test/clean-build"
	TagMissingModule  = "memos-test/missing-module"
	UnresolvableImage = "memos-test/does-not-exist:never"
)

type integrationTest struct {
	t      *testing.T
	docker docker.Docker
}

func integration(t *testing.T) *integrationTest {
	client, err := docker.NewEngineAPIClient(docker.GetDefaultDockerConfig())
	if err != nil {
		t.Fatalf("Unable to create docker client: %v", err)
	}
	d := docker.New(client, api.AuthConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.CheckReachable(ctx); err != nil {
		t.Skipf("Docker is not reachable: %v", err)
	}
	return &integrationTest{t: t, docker: d}
}

// project writes the scaffold into a new directory. Without the application
// module only the packages are kept.
func (i *integrationTest) project(withModule bool) string {
	dir := i.t.TempDir()
	b := create.New("memos", dir, api.NewConfig())
	if err := b.AddSource(); err != nil {
		i.t.Fatal(err)
	}
	if !withModule {
		os.Remove(filepath.Join(dir, "src", "memos", "api", "server_api.py"))
	}
	return dir
}

func (i *integrationTest) build(config *api.Config) (*api.Result, error) {
	config.SetDefaults()
	builder, _, err := strategies.GetStrategy(i.docker, config)
	if err != nil {
		i.t.Fatalf("Unable to create builder: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return builder.Build(ctx, config)
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestCleanBuildServes(t *testing.T) {
	i := integration(t)
	config := api.NewConfig()
	config.Source = i.project(true)
	config.Tag = TagCleanBuild
	result, err := i.build(config)
	if err != nil || !result.Success {
		t.Fatalf("Build failed: %v", err)
	}
	if len(result.ImageID) == 0 {
		t.Errorf("Expected an image ID")
	}

	config.HostPort = freePort(t)
	runner := run.New(i.docker, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, config) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer waitCancel()
	if err := runner.Tracker.WaitFor(waitCtx, api.RunServing); err != nil {
		cancel()
		t.Fatalf("Expected SERVING: %v (run: %v)", err, <-done)
	}

	second := *config
	err = run.New(i.docker, nil).Run(context.Background(), &second)
	if !errors.Is(err, errors.PortBindConflictError) {
		t.Errorf("Expected a port conflict for a second instance, got %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected a clean shutdown, got %v", err)
	}
}

func TestMissingModule(t *testing.T) {
	i := integration(t)
	config := api.NewConfig()
	config.Source = i.project(false)
	config.Tag = TagMissingModule
	config.Reload = false
	if result, err := i.build(config); err != nil || !result.Success {
		t.Fatalf("Build failed: %v", err)
	}

	config.HostPort = freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	err := run.New(i.docker, nil).Run(ctx, config)
	if !errors.Is(err, errors.ModuleImportFailedError) {
		t.Errorf("Expected a module import failure, got %v", err)
	}
}

func TestUnresolvableBaseImage(t *testing.T) {
	i := integration(t)
	config := api.NewConfig()
	config.Source = i.project(true)
	config.BaseImage = UnresolvableImage
	config.PullPolicy = api.PullIfNotPresent
	result, err := i.build(config)
	if !errors.Is(err, errors.BaseImageUnresolvedError) {
		t.Fatalf("Expected an unresolved base image, got %v", err)
	}
	if result.Success || len(result.ImageID) > 0 {
		t.Errorf("Expected no image, got %+v", result)
	}
}
