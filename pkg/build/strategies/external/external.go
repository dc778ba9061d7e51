package external

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/dockerfile"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
	"github.com/memtensor/memos-bootstrap/pkg/util/status"
)

// External represents the shell out for external build commands, therefore a
// Dockerfile is generated first and then handed to docker, podman or buildah.
type External struct {
	dockerfile *dockerfile.Dockerfile
}

// memosDockerfile Dockerfile default filename.
const memosDockerfile = "Dockerfile.memos"

var (
	// local logger
	log = utillog.StderrLog
	// supported external commands, the binary followed by its build verb
	commands = map[string][]string{
		"buildah": {"buildah", "bud"},
		"docker":  {"docker", "build"},
		"podman":  {"podman", "build"},
	}
)

// GetBuilders returns a list of command names, based global commands map.
func GetBuilders() []string {
	builders := []string{}
	for k := range commands {
		builders = append(builders, k)
	}
	sort.Strings(builders)
	return builders
}

// ValidBuilderName returns a boolean based in keys of global commands map.
func ValidBuilderName(name string) bool {
	_, exists := commands[name]
	return exists
}

// renderCommand returns the argument vector of the external build based in api.Config instance.
// Attribute WithBuilder will determine external builder name. The build context is the
// directory holding the Dockerfile. Arguments are never split on whitespace, so paths with
// spaces reach the builder intact.
func (e *External) renderCommand(config *api.Config) ([]string, error) {
	command, exists := commands[config.WithBuilder]
	if !exists {
		return nil, fmt.Errorf("cannot find command '%s' in dictionary: '%#v'",
			config.WithBuilder, commands)
	}

	args := append([]string{}, command...)
	return append(args,
		"--tag", config.Tag,
		"--file", config.AsDockerfile,
		filepath.Dir(config.AsDockerfile),
	), nil
}

// execute the given external command using "os/exec". Returns the outcomes as api.Result, making
// sure it only marks result as success when exit-code is zero. Therefore, it returns errors based
// in external command errors, so "memos-bootstrap build" also fails.
func (e *External) execute(ctx context.Context, externalCommand []string) (*api.Result, error) {
	res := &api.Result{Success: false, State: api.BuildFailed}
	if len(externalCommand) == 0 {
		return res, fmt.Errorf("empty external command")
	}
	log.V(0).Infof("Executing external build command: %q", externalCommand)

	cmd := exec.CommandContext(ctx, externalCommand[0], externalCommand[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	res.Messages = append(res.Messages, fmt.Sprintf("Running command: %q", externalCommand))
	if err := cmd.Start(); err != nil {
		res.Messages = append(res.Messages, err.Error())
		return res, err
	}

	if err := cmd.Wait(); err != nil {
		if exitErr, okay := err.(*exec.ExitError); okay {
			exitCode := exitErr.ExitCode()
			log.V(0).Infof("External command return-code: %d", exitCode)
			res.Messages = append(res.Messages, fmt.Sprintf("exit-code: %d", exitCode))
			return res, exitErr
		}
		return res, err
	}
	res.Success = true
	res.State = api.BuildSucceeded
	return res, nil
}

// asDockerfile inspect config, if user has already informed `--as-dockerfile` option, that's simply
// returned, otherwise, considering the build directory first before using artificial name.
func (e *External) asDockerfile(config *api.Config) string {
	if len(config.AsDockerfile) > 0 {
		return config.AsDockerfile
	}

	if len(config.BuildDir) > 0 {
		return path.Join(config.BuildDir, memosDockerfile)
	}
	return memosDockerfile
}

// Build triggers the build of a "strategy/dockerfile" to obtain "AsDockerfile" first, and then
// proceed to execute the external command.
func (e *External) Build(ctx context.Context, config *api.Config) (*api.Result, error) {
	defer e.dockerfile.Cleanup(config)
	if err := e.dockerfile.EnsureBuildDir(config); err != nil {
		return e.dockerfile.Fail(err)
	}
	config.AsDockerfile = e.asDockerfile(config)

	externalCommand, err := e.renderCommand(config)
	if err != nil {
		return e.dockerfile.Fail(err)
	}

	// generating dockerfile following AsDockerfile directive
	if err := e.dockerfile.Prepare(ctx, config, config.AsDockerfile); err != nil {
		return e.dockerfile.Fail(err)
	}

	res, err := e.execute(ctx, externalCommand)
	prepared := e.dockerfile.Result()
	res.BuildDir = prepared.BuildDir
	res.Dockerfile = prepared.Dockerfile
	res.BuildInfo.Stages = prepared.BuildInfo.Stages
	if err != nil {
		err = errors.NewBuildImageError(config.Tag, err)
		res.BuildInfo.FailureReason = status.FailureReasonFor(err)
		return res, err
	}
	res.Tag = config.Tag
	return res, nil
}

// New instance of External command strategy.
func New(config *api.Config, fs fs.FileSystem) (*External, error) {
	df, err := dockerfile.New(config, fs)
	if err != nil {
		return nil, err
	}
	return &External{dockerfile: df}, nil
}
