package test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// notFound satisfies the errdefs "not found" interface checked by the client.
type notFound struct{ error }

func (notFound) NotFound() {}

// FakeDockerClient provides a Fake client for Docker testing
type FakeDockerClient struct {
	mu sync.Mutex

	PingErr     error
	Version     types.Version
	Host        string
	InspectErr  error
	PullFail    error
	Pullable    map[string]types.ImageInspect
	PullOptions types.ImagePullOptions

	BuildImageOpts   types.ImageBuildOptions
	BuildImageErr    error
	BuildImageOutput string
	BuildContext     []byte

	Images     map[string]types.ImageInspect
	Containers map[string]container.Config
	// Created keeps every container config passed to ContainerCreate.
	Created    []container.Config
	HostConfig map[string]container.HostConfig

	CreateErr error
	StartErr  error

	// Wait is closed (or written to) by tests to let ContainerWait return.
	Wait        chan container.WaitResponse
	WaitErr     error
	StopErr     error
	StopOptions container.StopOptions
	LogsStdout  string
	LogsStderr  string
	Calls       []string
}

// NewFakeDockerClient returns a FakeDockerClient with initialized maps.
func NewFakeDockerClient() *FakeDockerClient {
	return &FakeDockerClient{
		Images:     make(map[string]types.ImageInspect),
		Containers: make(map[string]container.Config),
		HostConfig: make(map[string]container.HostConfig),
		Pullable:   make(map[string]types.ImageInspect),
		Wait:       make(chan container.WaitResponse, 1),
		Calls:      make([]string, 0),
		Host:       "unix:///var/run/docker.sock",
	}
}

func (d *FakeDockerClient) call(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, name)
}

// CallList returns a copy of the recorded calls.
func (d *FakeDockerClient) CallList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Calls...)
}

// Ping records the call and returns PingErr.
func (d *FakeDockerClient) Ping(ctx context.Context) (types.Ping, error) {
	d.call("ping")
	return types.Ping{}, d.PingErr
}

// ServerVersion returns Version.
func (d *FakeDockerClient) ServerVersion(ctx context.Context) (types.Version, error) {
	d.call("version")
	return d.Version, nil
}

// DaemonHost returns Host.
func (d *FakeDockerClient) DaemonHost() string {
	return d.Host
}

// ImageInspectWithRaw returns the image registered under imageID.
func (d *FakeDockerClient) ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error) {
	d.call("inspect_image")
	if d.InspectErr != nil {
		return types.ImageInspect{}, nil, d.InspectErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if image, exists := d.Images[imageID]; exists {
		return image, nil, nil
	}
	return types.ImageInspect{}, nil, notFound{errors.New("No such image: " + imageID)}
}

// ImagePull makes images listed in Pullable available locally.
func (d *FakeDockerClient) ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error) {
	d.call("pull")
	d.PullOptions = options
	if d.PullFail != nil {
		return nil, d.PullFail
	}
	d.mu.Lock()
	if image, ok := d.Pullable[ref]; ok {
		d.Images[ref] = image
	}
	d.mu.Unlock()
	return io.NopCloser(bytes.NewBufferString(`{"status":"Pulling from memtensor/memos"}` + "\n")), nil
}

// ImageBuild records the options and the build context.
func (d *FakeDockerClient) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	d.call("build")
	d.BuildImageOpts = options
	if buildContext != nil {
		d.BuildContext, _ = io.ReadAll(buildContext)
	}
	output := d.BuildImageOutput
	if len(output) == 0 {
		output = `{"stream":"Step 1/7 : FROM memos"}` + "\n" + `{"aux":{"ID":"sha256:1234"}}` + "\n"
	}
	return types.ImageBuildResponse{
		Body: io.NopCloser(bytes.NewBufferString(output)),
	}, d.BuildImageErr
}

// ContainerCreate registers the container under its name.
func (d *FakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	d.call("create")
	if d.CreateErr != nil {
		return container.CreateResponse{}, d.CreateErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Containers[containerName] = *config
	d.Created = append(d.Created, *config)
	if hostConfig != nil {
		d.HostConfig[containerName] = *hostConfig
	}
	return container.CreateResponse{ID: containerName}, nil
}

// ContainerStart returns StartErr.
func (d *FakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	d.call("start")
	return d.StartErr
}

// ContainerWait returns once a response is sent on Wait or ctx is done.
func (d *FakeDockerClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	d.call("wait")
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	if d.WaitErr != nil {
		errCh <- d.WaitErr
		return statusCh, errCh
	}
	go func() {
		select {
		case resp := <-d.Wait:
			statusCh <- resp
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()
	return statusCh, errCh
}

// ContainerStop records the options and lets a pending wait return 0.
func (d *FakeDockerClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	d.call("stop")
	d.StopOptions = options
	if d.StopErr != nil {
		return d.StopErr
	}
	select {
	case d.Wait <- container.WaitResponse{StatusCode: 0}:
	default:
	}
	return nil
}

// ContainerRemove deletes the container.
func (d *FakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	d.call("remove")
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.Containers[containerID]; exists {
		delete(d.Containers, containerID)
		return nil
	}
	return errors.New("container does not exist")
}

// ContainerLogs returns LogsStdout and LogsStderr multiplexed like the engine
// does for containers without a TTY.
func (d *FakeDockerClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	d.call("logs")
	var buf bytes.Buffer
	if len(d.LogsStdout) > 0 {
		stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(d.LogsStdout))
	}
	if len(d.LogsStderr) > 0 {
		stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(d.LogsStderr))
	}
	return io.NopCloser(&buf), nil
}
