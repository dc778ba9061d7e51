// Package launch starts the ASGI server of the application as a local
// process, using only the values held by a RuntimeConfig.
package launch

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/run"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// DefaultShutdownTimeout is how long the server gets to exit after the
// termination signal before it is killed.
const DefaultShutdownTimeout = 10 * time.Second

// inherited lists the only variables taken from the bootstrap's own
// environment.
var inherited = []string{"PATH", "HOME"}

// Launcher runs the server command in the foreground.
type Launcher struct {
	Tracker         *run.Tracker
	Stdout          io.Writer
	Stderr          io.Writer
	ShutdownTimeout time.Duration
}

// New creates a Launcher writing the server output to the process output.
func New(tracker *run.Tracker) *Launcher {
	if tracker == nil {
		tracker = run.NewTracker()
	}
	return &Launcher{
		Tracker:         tracker,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Run launches the unit described by config.
func (l *Launcher) Run(ctx context.Context, config *api.Config) error {
	return l.Launch(ctx, config.RuntimeConfig())
}

// Launch checks that the application module resolves and that the port is
// free, then runs the server until it exits or ctx is done. Cancelling ctx
// forwards SIGTERM to the server; a shutdown initiated that way returns nil.
func (l *Launcher) Launch(ctx context.Context, rc api.RuntimeConfig) error {
	l.Tracker.Set(api.RunStarting)
	defer l.Tracker.Set(api.RunStopped)

	importPath := absImportPath(rc.WorkDir, rc.ImportPath)
	location, err := ResolveModule(importPath, rc.Module())
	if err != nil {
		return errors.NewModuleImportFailedError(rc.AppTarget, importPath, err)
	}
	log.V(2).Infof("Module %s resolved to %s", rc.Module(), location)

	if err := CheckPortFree(rc.Host, rc.Port); err != nil {
		return errors.NewPortBindConflictError(rc.Address(), err)
	}

	args := rc.Args()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = rc.WorkDir
	cmd.Env = Environ(rc)
	output := &run.TailBuffer{Max: 64 * 1024}
	cmd.Stdout = io.MultiWriter(l.Stdout, output)
	cmd.Stderr = io.MultiWriter(l.Stderr, output)

	log.V(1).Infof("Starting %s", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return errors.NewLaunchProcessError(rc.ServerCommand, err)
	}

	exited := make(chan error, 1)
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()

	g := errgroup.Group{}
	g.Go(func() error {
		err := cmd.Wait()
		cancelProbe()
		exited <- err
		return nil
	})
	g.Go(func() error {
		if run.WaitForPort(probeCtx, net.JoinHostPort(probeHost(rc.Host), strconv.Itoa(rc.Port))) == nil {
			l.Tracker.Set(api.RunServing)
		}
		return nil
	})

	var waitErr error
	stopped := false
	select {
	case waitErr = <-exited:
	case <-ctx.Done():
		stopped = true
		waitErr = l.shutdown(cmd, exited)
	}
	g.Wait()

	if stopped {
		if waitErr != nil {
			log.V(1).Infof("Server exited after shutdown: %v", waitErr)
		}
		return nil
	}
	if waitErr == nil {
		return nil
	}

	out := output.String()
	switch {
	case run.ImportFailed(out):
		return errors.NewModuleImportFailedError(rc.AppTarget, importPath, waitErr)
	case strings.Contains(out, "address already in use"):
		return errors.NewPortBindConflictError(rc.Address(), waitErr)
	}
	return errors.NewLaunchProcessError(rc.ServerCommand, waitErr)
}

// shutdown forwards SIGTERM and kills the server once ShutdownTimeout
// expires.
func (l *Launcher) shutdown(cmd *exec.Cmd, exited <-chan error) error {
	log.V(1).Infof("Forwarding termination signal to %d", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.V(2).Infof("Unable to signal server: %v", err)
	}
	select {
	case err := <-exited:
		return err
	case <-time.After(l.ShutdownTimeout):
		log.Warningf("Server did not exit within %s, killing it", l.ShutdownTimeout)
		cmd.Process.Kill()
		return <-exited
	}
}

// ResolveModule finds the file of a dotted module name under one of the
// import path entries: either <name>.py or <name>/__init__.py.
func ResolveModule(importPath []string, module string) (string, error) {
	if len(module) == 0 {
		return "", fmt.Errorf("empty module name")
	}
	rel := filepath.Join(strings.Split(module, ".")...)
	for _, entry := range importPath {
		for _, candidate := range []string{
			filepath.Join(entry, rel+".py"),
			filepath.Join(entry, rel, "__init__.py"),
		} {
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no module named %q", module)
}

// CheckPortFree fails when host:port cannot be bound.
func CheckPortFree(host string, port int) error {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return l.Close()
}

// Environ builds the server environment from the RuntimeConfig, adding only
// PATH and HOME from the current process.
func Environ(rc api.RuntimeConfig) []string {
	var env []string
	for _, name := range inherited {
		if value, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+value)
		}
	}
	return append(env, rc.Environment.Strings()...)
}

func absImportPath(workDir string, importPath []string) []string {
	result := make([]string, 0, len(importPath))
	for _, p := range importPath {
		if !filepath.IsAbs(p) && len(workDir) > 0 {
			p = filepath.Join(workDir, p)
		}
		result = append(result, p)
	}
	return result
}

// probeHost turns a wildcard bind address into a dialable one.
func probeHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::":
		return "::1"
	}
	return host
}
