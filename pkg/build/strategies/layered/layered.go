// Package layered builds the image through the Docker Engine API from a
// prepared build context.
package layered

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/pkg/archive"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/dockerfile"
	"github.com/memtensor/memos-bootstrap/pkg/docker"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// uploadDir holds fetched repositories inside the build directory; it is not
// part of the build context.
const uploadDir = "upload"

// Layered pulls the base image, prepares the build context and builds the
// image with the container engine.
type Layered struct {
	docker     docker.Docker
	fs         fs.FileSystem
	dockerfile *dockerfile.Dockerfile
	output     io.Writer
}

// New creates a Layered builder.
func New(d docker.Docker, config *api.Config, fs fs.FileSystem) (*Layered, error) {
	df, err := dockerfile.New(config, fs)
	if err != nil {
		return nil, err
	}
	var output io.Writer = os.Stdout
	if config.Quiet {
		output = io.Discard
	}
	return &Layered{
		docker:     d,
		fs:         fs,
		dockerfile: df,
		output:     output,
	}, nil
}

// Build runs the PullImages, PrepareSource, CreateDockerfile and BuildImage
// stages. The first failing step ends the build.
func (l *Layered) Build(ctx context.Context, config *api.Config) (*api.Result, error) {
	result := l.dockerfile.Result()
	defer l.dockerfile.Cleanup(config)

	startTime := time.Now()
	_, err := l.docker.CheckAndPullImage(ctx, config.BaseImage, config.PullPolicy)
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StagePullImages, api.StepPullBaseImage, startTime, time.Now())
	if err != nil {
		return l.dockerfile.Fail(err)
	}

	if err := l.dockerfile.EnsureBuildDir(config); err != nil {
		return l.dockerfile.Fail(err)
	}
	dockerfilePath := filepath.Join(config.BuildDir, dockerfile.DefaultDestination)
	if err := l.dockerfile.Prepare(ctx, config, dockerfilePath); err != nil {
		return l.dockerfile.Fail(err)
	}

	startTime = time.Now()
	tarStream, err := archive.TarWithOptions(config.BuildDir, &archive.TarOptions{
		ExcludePatterns: []string{uploadDir},
	})
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageBuild, api.StepTarContext, startTime, time.Now())
	if err != nil {
		return l.dockerfile.Fail(errors.NewBuildImageError(config.Tag, fmt.Errorf("unable to tar %s: %v", config.BuildDir, err)))
	}
	defer tarStream.Close()

	startTime = time.Now()
	imageID, err := l.docker.BuildImage(ctx, docker.BuildImageOptions{
		Name:       config.Tag,
		Dockerfile: dockerfile.DefaultDestination,
		Context:    tarStream,
		Stdout:     l.output,
	})
	result.BuildInfo.Stages = api.RecordStageAndStepInfo(result.BuildInfo.Stages, api.StageBuild, api.StepBuildImage, startTime, time.Now())
	if err != nil {
		return l.dockerfile.Fail(err)
	}

	log.V(1).Infof("Built image %s (%s)", config.Tag, imageID)
	result.Success = true
	result.State = api.BuildSucceeded
	result.ImageID = imageID
	result.Tag = config.Tag
	result.Messages = append(result.Messages, fmt.Sprintf("Built image %s", config.Tag))
	return result, nil
}
