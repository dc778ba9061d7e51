package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	memoserr "github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/util"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

const (
	// DefaultDockerTimeout specifies a timeout for Docker API calls. When this
	// timeout is reached, certain Docker API calls might error out.
	DefaultDockerTimeout = 2 * time.Minute

	// DefaultStopTimeout is the grace period given to a container on stop.
	DefaultStopTimeout = 10 * time.Second

	containerNamePrefix = "memos"
)

// Docker is the interface between the bootstrap and the container engine.
type Docker interface {
	CheckReachable(ctx context.Context) error
	Version(ctx context.Context) (types.Version, error)
	IsImageInLocalRegistry(ctx context.Context, name string) (bool, error)
	CheckAndPullImage(ctx context.Context, name string, policy api.PullPolicy) (*types.ImageInspect, error)
	PullImage(ctx context.Context, name string) (*types.ImageInspect, error)
	BuildImage(ctx context.Context, opts BuildImageOptions) (string, error)
	RunContainer(ctx context.Context, opts RunContainerOptions) (string, error)
	WaitContainer(ctx context.Context, id string) (int, error)
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, id string) error
	ContainerLogs(ctx context.Context, id string, follow bool, stdout, stderr io.Writer) error
}

// Client contains all methods used when interacting directly with docker
// engine-api.
type Client interface {
	Ping(ctx context.Context) (types.Ping, error)
	ServerVersion(ctx context.Context) (types.Version, error)
	DaemonHost() string
	ImageInspectWithRaw(ctx context.Context, image string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
}

type engineDocker struct {
	client   Client
	pullAuth api.AuthConfig
	// output receives pull and build progress.
	output io.Writer
}

// BuildImageOptions are options passed in to the BuildImage method.
type BuildImageOptions struct {
	Name       string
	Dockerfile string
	Context    io.Reader
	Labels     map[string]string
	Stdout     io.Writer
}

// RunContainerOptions are options passed in to the RunContainer method.
type RunContainerOptions struct {
	Image      string
	Name       string
	Env        []string
	Cmd        []string
	Labels     map[string]string
	Port       int
	HostIP     string
	HostPort   int
	AutoRemove bool
}

// New creates a new implementation of the Docker interface.
func New(client Client, auth api.AuthConfig) Docker {
	return &engineDocker{
		client:   client,
		pullAuth: auth,
		output:   os.Stderr,
	}
}

// NewEngineAPIClient creates a new Docker engine API client.
func NewEngineAPIClient(config *api.DockerConfig) (*client.Client, error) {
	opts := []client.Opt{
		client.WithHost(config.Endpoint),
		client.WithAPIVersionNegotiation(),
	}
	if config.UseTLS || config.TLSVerify {
		opts = append(opts, client.WithTLSClientConfig(config.CAFile, config.CertFile, config.KeyFile))
	}
	return client.NewClientWithOpts(opts...)
}

// CheckReachable returns an error when the docker daemon cannot be pinged.
func (d *engineDocker) CheckReachable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	if _, err := d.client.Ping(ctx); err != nil {
		return memoserr.NewDockerConnectionError(d.client.DaemonHost(), err)
	}
	return nil
}

// Version returns the engine version.
func (d *engineDocker) Version(ctx context.Context) (types.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	return d.client.ServerVersion(ctx)
}

// IsImageInLocalRegistry determines whether the supplied image is in the local
// registry.
func (d *engineDocker) IsImageInLocalRegistry(ctx context.Context, name string) (bool, error) {
	name = getImageName(name)
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	_, _, err := d.client.ImageInspectWithRaw(ctx, name)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, memoserr.NewInspectImageError(name, err)
}

// CheckAndPullImage pulls an image according to policy. Any failure to
// obtain the image is reported as an unresolved base image.
func (d *engineDocker) CheckAndPullImage(ctx context.Context, name string, policy api.PullPolicy) (*types.ImageInspect, error) {
	name = getImageName(name)
	switch policy {
	case api.PullAlways:
		return d.PullImage(ctx, name)
	case api.PullNever:
		image, err := d.inspect(ctx, name)
		if err != nil {
			return nil, memoserr.NewBaseImageUnresolvedError(name, err)
		}
		return image, nil
	}

	found, err := d.IsImageInLocalRegistry(ctx, name)
	if err != nil {
		return nil, memoserr.NewBaseImageUnresolvedError(name, err)
	}
	if !found {
		return d.PullImage(ctx, name)
	}
	log.V(3).Infof("Using locally available image %q", name)
	return d.inspect(ctx, name)
}

// PullImage pulls an image into the local registry.
func (d *engineDocker) PullImage(ctx context.Context, name string) (*types.ImageInspect, error) {
	name = getImageName(name)
	log.V(1).Infof("Pulling image %q ...", name)

	opts := types.ImagePullOptions{}
	if len(d.pullAuth.Username) > 0 || len(d.pullAuth.Password) > 0 {
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      d.pullAuth.Username,
			Password:      d.pullAuth.Password,
			Email:         d.pullAuth.Email,
			ServerAddress: d.pullAuth.ServerAddress,
		})
		if err != nil {
			return nil, memoserr.NewBaseImageUnresolvedError(name, err)
		}
		opts.RegistryAuth = encoded
	}

	resp, err := d.client.ImagePull(ctx, name, opts)
	if err != nil {
		return nil, memoserr.NewBaseImageUnresolvedError(name, memoserr.NewPullImageError(name, err))
	}
	defer resp.Close()

	out := io.Discard
	if log.Is(2) {
		out = d.output
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp, out, 0, false, nil); err != nil {
		return nil, memoserr.NewBaseImageUnresolvedError(name, memoserr.NewPullImageError(name, err))
	}

	image, err := d.inspect(ctx, name)
	if err != nil {
		return nil, memoserr.NewBaseImageUnresolvedError(name, err)
	}
	return image, nil
}

func (d *engineDocker) inspect(ctx context.Context, name string) (*types.ImageInspect, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	image, _, err := d.client.ImageInspectWithRaw(ctx, name)
	if err != nil {
		return nil, memoserr.NewInspectImageError(name, err)
	}
	return &image, nil
}

// BuildImage builds the image according to specified options and returns the
// resulting image ID.
func (d *engineDocker) BuildImage(ctx context.Context, opts BuildImageOptions) (string, error) {
	dockerfile := opts.Dockerfile
	if len(dockerfile) == 0 {
		dockerfile = "Dockerfile"
	}
	options := types.ImageBuildOptions{
		Tags:           []string{opts.Name},
		Dockerfile:     dockerfile,
		Labels:         opts.Labels,
		Remove:         true,
		ForceRemove:    true,
		SuppressOutput: false,
	}
	log.V(2).Infof("Building image %q", opts.Name)
	resp, err := d.client.ImageBuild(ctx, opts.Context, options)
	if err != nil {
		return "", memoserr.NewBuildImageError(opts.Name, err)
	}
	defer resp.Body.Close()

	out := opts.Stdout
	if out == nil {
		out = io.Discard
	}
	var imageID string
	aux := func(msg jsonmessage.JSONMessage) {
		var result types.BuildResult
		if msg.Aux != nil && json.Unmarshal(*msg.Aux, &result) == nil {
			imageID = result.ID
		}
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, aux); err != nil {
		return "", memoserr.NewBuildImageError(opts.Name, err)
	}
	return imageID, nil
}

// RunContainer creates and starts a container publishing opts.Port on the
// host. It returns the container ID.
func (d *engineDocker) RunContainer(ctx context.Context, opts RunContainerOptions) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(opts.Port))
	if err != nil {
		return "", err
	}
	hostPort := opts.HostPort
	if hostPort == 0 {
		hostPort = opts.Port
	}

	name := opts.Name
	if len(name) == 0 {
		name = containerName(opts.Image)
	}
	config := &container.Config{
		Image:        getImageName(opts.Image),
		Env:          opts.Env,
		Cmd:          opts.Cmd,
		Labels:       opts.Labels,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostConfig := &container.HostConfig{
		AutoRemove: opts.AutoRemove,
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: opts.HostIP, HostPort: strconv.Itoa(hostPort)}},
		},
	}

	log.V(2).Infof("Creating container %q with port %s published on %d", name, port, hostPort)
	log.V(3).Infof("Container config: %s", util.SafeForLoggingContainerConfig(config))
	resp, err := d.client.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return "", err
	}
	for _, w := range resp.Warnings {
		log.Warning(w)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if !opts.AutoRemove {
			d.RemoveContainer(context.Background(), resp.ID)
		}
		if isPortConflict(err) {
			return "", memoserr.NewPortBindConflictError(fmt.Sprintf("%s:%d", opts.HostIP, hostPort), err)
		}
		return "", err
	}
	return resp.ID, nil
}

// WaitContainer blocks until the container stops and returns its exit code.
func (d *engineDocker) WaitContainer(ctx context.Context, id string) (int, error) {
	statusCh, errCh := d.client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, err
	case status := <-statusCh:
		if status.Error != nil && len(status.Error.Message) > 0 {
			return int(status.StatusCode), fmt.Errorf("%s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	}
}

// StopContainer stops a running container, killing it once timeout expires.
func (d *engineDocker) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	log.V(2).Infof("Stopping container %q", id)
	return d.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds})
}

// RemoveContainer removes a container and its associated volumes.
func (d *engineDocker) RemoveContainer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	return d.client.ContainerRemove(ctx, id, container.RemoveOptions{RemoveVolumes: true, Force: true})
}

// ContainerLogs copies the demultiplexed container output to stdout and
// stderr. With follow it returns once the container stops.
func (d *engineDocker) ContainerLogs(ctx context.Context, id string, follow bool, stdout, stderr io.Writer) error {
	rc, err := d.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
	})
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = stdcopy.StdCopy(stdout, stderr, rc)
	return err
}

func isPortConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "port is already allocated") ||
		strings.Contains(msg, "address already in use")
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// containerName creates a unique and human-readable name for a container.
func containerName(image string) string {
	name := invalidNameChars.ReplaceAllString(image, "_")
	name = strings.Trim(name, "_.-")
	return fmt.Sprintf("%s_%s_%08x", containerNamePrefix, name, rand.Uint32())
}
