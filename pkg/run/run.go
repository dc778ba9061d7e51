// Package run supports running images produced by the bootstrap. It is used
// by the run command and the --run=true build option.
package run

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/docker"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// ProbeInterval is the delay between two readiness probes.
var ProbeInterval = 250 * time.Millisecond

// importFailures are printed by the python runtime or the ASGI server when
// the application module cannot be imported.
var importFailures = []string{
	"ModuleNotFoundError",
	"Error loading ASGI app",
	"Could not import module",
	"ImportError",
}

// A DockerRunner allows running a Docker image as a new container, streaming
// its stdout and stderr.
type DockerRunner struct {
	ContainerClient docker.Docker
	Tracker         *Tracker

	// ProbeHost is dialed on the published port to detect readiness.
	ProbeHost string
	Stdout    io.Writer
	Stderr    io.Writer
}

// New creates a DockerRunner for executing the methods associated with running
// the produced image in a docker container.
func New(client docker.Docker, tracker *Tracker) *DockerRunner {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &DockerRunner{
		ContainerClient: client,
		Tracker:         tracker,
		ProbeHost:       "127.0.0.1",
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}
}

type waitResult struct {
	code int
	err  error
}

// Run invokes the Docker API to run the image tagged config.Tag as a new
// container and blocks until it stops. SERVING is entered once the published
// port accepts connections. Cancelling ctx stops the container; that is a
// clean shutdown and returns nil.
func (b *DockerRunner) Run(ctx context.Context, config *api.Config) error {
	log.V(4).Infof("Attempting to run image %s", config.Tag)
	b.Tracker.Set(api.RunStarting)
	defer b.Tracker.Set(api.RunStopped)

	hostPort := config.HostPort
	if hostPort == 0 {
		hostPort = config.Port
	}
	rc := config.RuntimeConfig()
	id, err := b.ContainerClient.RunContainer(ctx, docker.RunContainerOptions{
		Image:    config.Tag,
		Env:      rc.Environment.Strings(),
		Cmd:      rc.Args(),
		Port:     config.Port,
		HostPort: hostPort,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := b.ContainerClient.RemoveContainer(context.Background(), id); err != nil {
			log.V(2).Infof("Unable to remove container %s: %v", id, err)
		}
	}()

	waitCh := make(chan waitResult, 1)
	go func() {
		code, err := b.ContainerClient.WaitContainer(context.Background(), id)
		waitCh <- waitResult{code, err}
	}()

	output := &TailBuffer{Max: 64 * 1024}
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()

	var g errgroup.Group
	g.Go(func() error {
		return b.ContainerClient.ContainerLogs(context.Background(), id, true,
			io.MultiWriter(b.Stdout, output), io.MultiWriter(b.Stderr, output))
	})
	g.Go(func() error {
		addr := net.JoinHostPort(b.ProbeHost, strconv.Itoa(hostPort))
		if WaitForPort(probeCtx, addr) == nil {
			b.Tracker.Set(api.RunServing)
		}
		return nil
	})

	var res waitResult
	stopped := false
	select {
	case res = <-waitCh:
	case <-ctx.Done():
		stopped = true
		log.V(1).Infof("Stopping %s", config.Tag)
		if err := b.ContainerClient.StopContainer(context.Background(), id, docker.DefaultStopTimeout); err != nil {
			log.Warningf("Unable to stop container %s: %v", id, err)
		}
		res = <-waitCh
	}
	cancelProbe()
	if err := g.Wait(); err != nil {
		log.V(2).Infof("Log streaming ended: %v", err)
	}

	if stopped {
		return nil
	}
	if res.err != nil {
		return res.err
	}
	if res.code != 0 {
		out := output.String()
		if ImportFailed(out) {
			return errors.NewModuleImportFailedError(config.AppTarget, config.ImportPathEntries(), errors.NewContainerError(config.Tag, res.code, out))
		}
		// The container is temporary and its name is meaningless, therefore
		// the error reports the image tag.
		return errors.NewContainerError(config.Tag, res.code, out)
	}
	return nil
}

// ImportFailed reports whether output shows that the application module
// could not be imported.
func ImportFailed(output string) bool {
	for _, marker := range importFailures {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

// WaitForPort dials addr until it accepts a TCP connection or ctx is done.
func WaitForPort(ctx context.Context, addr string) error {
	dialer := net.Dialer{Timeout: time.Second}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ProbeInterval):
		}
	}
}

// TailBuffer keeps the last Max bytes written to it. It is safe for
// concurrent writers.
type TailBuffer struct {
	Max int

	mu  sync.Mutex
	buf []byte
}

func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.Max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
