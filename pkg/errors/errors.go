package errors

import (
	"fmt"
	"strings"
)

// Common bootstrap error codes. Each one is also the exit status of the CLI.
const (
	InspectImageError int = 1 + iota
	PullImageError
	BaseImageUnresolvedError
	SourceCopyFailedError
	DockerfileCreateError
	BuildImageError
	DockerConnectionError
	InvalidConfigError
	PortBindConflictError
	ModuleImportFailedError
	RunContainerError
	LaunchProcessError
	EmptyGitRepositoryError
)

// Error represents an error thrown during the bootstrap.
type Error struct {
	Message    string
	Details    error
	ErrorCode  int
	Suggestion string
}

// ContainerError is an error returned when a container exits with a non-zero
// code. ExitCode contains the exit code from the container.
type ContainerError struct {
	Message    string
	Output     string
	ErrorCode  int
	Suggestion string
	ExitCode   int
}

// Error returns a string for a given error.
func (s Error) Error() string {
	return s.Message
}

// Unwrap exposes the underlying cause.
func (s Error) Unwrap() error {
	return s.Details
}

// Error returns a string for the given error.
func (s ContainerError) Error() string {
	return s.Message
}

// Code returns the bootstrap error code of err, or 0 when err is not an Error
// or a ContainerError.
func Code(err error) int {
	switch e := err.(type) {
	case Error:
		return e.ErrorCode
	case *Error:
		return e.ErrorCode
	case ContainerError:
		return e.ErrorCode
	case *ContainerError:
		return e.ErrorCode
	}
	return 0
}

// Is reports whether err carries the given bootstrap error code.
func Is(err error, code int) bool {
	return err != nil && Code(err) == code
}

// NewInspectImageError returns a new error which indicates there was a problem
// inspecting the image.
func NewInspectImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to get metadata for %s", name),
		Details:    err,
		ErrorCode:  InspectImageError,
		Suggestion: "check image name",
	}
}

// NewPullImageError returns a new error which indicates there was a problem
// pulling the image.
func NewPullImageError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to get %s", name),
		Details:    err,
		ErrorCode:  PullImageError,
		Suggestion: fmt.Sprintf("check image name, or if using a local image set the pull policy to %q", "never"),
	}
}

// NewBaseImageUnresolvedError returns a new error which indicates the base
// image reference could not be resolved locally or from its registry.
func NewBaseImageUnresolvedError(name string, err error) error {
	return Error{
		Message:    fmt.Sprintf("base image %q could not be resolved", name),
		Details:    err,
		ErrorCode:  BaseImageUnresolvedError,
		Suggestion: "check the base image reference and the registry credentials in the docker config file",
	}
}

// NewSourceCopyFailedError returns a new error which indicates the local source
// tree could not be copied into the build context.
func NewSourceCopyFailedError(path string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to copy source %q", path),
		Details:    err,
		ErrorCode:  SourceCopyFailedError,
		Suggestion: "check that the source directory exists and is readable",
	}
}

// NewDockerfileCreateError returns an error which indicates there was a
// problem rendering or writing the Dockerfile.
func NewDockerfileCreateError(path string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to create Dockerfile %q", path),
		Details:    err,
		ErrorCode:  DockerfileCreateError,
		Suggestion: "check the environment variable declarations and the output path",
	}
}

// NewBuildImageError returns a new error which indicates the image build
// failed.
func NewBuildImageError(tag string, err error) error {
	return Error{
		Message:    fmt.Sprintf("building image %q failed", tag),
		Details:    err,
		ErrorCode:  BuildImageError,
		Suggestion: "check the build output above",
	}
}

// NewDockerConnectionError returns a new error which indicates the docker
// daemon could not be reached.
func NewDockerConnectionError(endpoint string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to connect to the container engine at %q", endpoint),
		Details:    err,
		ErrorCode:  DockerConnectionError,
		Suggestion: "check that the docker daemon is running and DOCKER_HOST is set correctly",
	}
}

// NewInvalidConfigError returns a new error which collects all validation
// problems of a configuration.
func NewInvalidConfigError(problems []error) error {
	msgs := make([]string, 0, len(problems))
	for _, p := range problems {
		msgs = append(msgs, p.Error())
	}
	return Error{
		Message:    "invalid configuration: " + strings.Join(msgs, "; "),
		ErrorCode:  InvalidConfigError,
		Suggestion: "fix the reported flags or options file entries",
	}
}

// NewPortBindConflictError returns a new error which indicates the declared
// port is already bound by another process.
func NewPortBindConflictError(addr string, err error) error {
	return Error{
		Message:    fmt.Sprintf("port %s is already in use", addr),
		Details:    err,
		ErrorCode:  PortBindConflictError,
		Suggestion: "stop the process holding the port or publish the container on another host port",
	}
}

// NewModuleImportFailedError returns a new error which indicates the
// application target could not be imported with the configured import path.
func NewModuleImportFailedError(target string, importPath []string, err error) error {
	return Error{
		Message:    fmt.Sprintf("unable to import %q from import path %q", target, strings.Join(importPath, ":")),
		Details:    err,
		ErrorCode:  ModuleImportFailedError,
		Suggestion: "check that the module exists under the copied source tree and that PYTHONPATH points at it",
	}
}

// NewLaunchProcessError returns a new error which indicates the server process
// could not be started or exited abnormally.
func NewLaunchProcessError(command string, err error) error {
	return Error{
		Message:    fmt.Sprintf("server process %q failed", command),
		Details:    err,
		ErrorCode:  LaunchProcessError,
		Suggestion: "check the server output above",
	}
}

// NewContainerError return a new error which indicates there was a problem
// running a container.
func NewContainerError(name string, code int, output string) error {
	return ContainerError{
		Message:    fmt.Sprintf("container %q exited with status %d", name, code),
		Output:     output,
		ErrorCode:  RunContainerError,
		Suggestion: "check the container logs",
		ExitCode:   code,
	}
}

// NewEmptyGitRepositoryError returns a new error which indicates that a
// repository contains no commits.
func NewEmptyGitRepositoryError(source string) error {
	return Error{
		Message:    fmt.Sprintf("%s has no commits", source),
		ErrorCode:  EmptyGitRepositoryError,
		Suggestion: "commit files to the repository or use a local directory source",
	}
}
