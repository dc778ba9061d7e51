// Package dockerfile renders an image description into a Dockerfile and
// assembles a self-contained build context around it.
package dockerfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/describe"
	"github.com/memtensor/memos-bootstrap/pkg/build"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/ignore"
	"github.com/memtensor/memos-bootstrap/pkg/scm"
	"github.com/memtensor/memos-bootstrap/pkg/scripts"
	"github.com/memtensor/memos-bootstrap/pkg/util"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
	"github.com/memtensor/memos-bootstrap/pkg/util/status"
)

var log = utillog.StderrLog

// DefaultDestination is the Dockerfile name used inside a build context.
const DefaultDestination = "Dockerfile"

// Dockerfile is the default strategy when --as-dockerfile is set. It writes
// the Dockerfile and the source tree it copies, without building anything.
type Dockerfile struct {
	fs         fs.FileSystem
	downloader scm.Downloader
	result     *api.Result
	tempDir    bool
}

// New creates a Dockerfile builder.
func New(config *api.Config, fs fs.FileSystem) (*Dockerfile, error) {
	return &Dockerfile{
		fs:         fs,
		downloader: scm.DownloaderForSource(fs, config.Source),
		result:     &api.Result{},
	}, nil
}

// Build writes the Dockerfile to config.AsDockerfile and copies the source
// tree next to it.
func (d *Dockerfile) Build(ctx context.Context, config *api.Config) (*api.Result, error) {
	defer d.Cleanup(config)

	if len(config.AsDockerfile) == 0 {
		return d.Fail(errors.NewDockerfileCreateError("", fmt.Errorf("no output path given")))
	}
	if err := d.Prepare(ctx, config, config.AsDockerfile); err != nil {
		return d.Fail(err)
	}

	d.result.Success = true
	d.result.State = api.BuildSucceeded
	d.result.Messages = append(d.result.Messages, fmt.Sprintf("Wrote %s", config.AsDockerfile))
	return d.result, nil
}

// Result returns the result accumulated by Prepare.
func (d *Dockerfile) Result() *api.Result {
	return d.result
}

// Fail marks the result as failed with the reason derived from err.
func (d *Dockerfile) Fail(err error) (*api.Result, error) {
	d.result.Success = false
	d.result.State = api.BuildFailed
	d.result.Tag = ""
	d.result.BuildInfo.FailureReason = status.FailureReasonFor(err)
	d.result.Messages = append(d.result.Messages, err.Error())
	return d.result, err
}

// Prepare fetches the project, copies its source directory into the
// directory holding dockerfilePath and writes the rendered Dockerfile there.
func (d *Dockerfile) Prepare(ctx context.Context, config *api.Config, dockerfilePath string) error {
	if err := d.EnsureBuildDir(config); err != nil {
		return err
	}

	startTime := time.Now()
	projectDir, info, err := d.downloader.Download(ctx, config)
	d.result.BuildInfo.Stages = api.RecordStageAndStepInfo(d.result.BuildInfo.Stages, api.StagePrepareSource, api.StepFetchSource, startTime, time.Now())
	if err != nil {
		return err
	}

	projectEnv, err := scripts.GetEnvironment(d.fs, projectDir)
	if err != nil {
		return errors.NewSourceCopyFailedError(projectDir, err)
	}
	if len(projectEnv) > 0 {
		config.Environment = append(projectEnv, config.Environment...)
	}

	contextDir := filepath.Dir(dockerfilePath)
	startTime = time.Now()
	err = d.CopySource(config, projectDir, contextDir)
	d.result.BuildInfo.Stages = api.RecordStageAndStepInfo(d.result.BuildInfo.Stages, api.StagePrepareSource, api.StepCopySource, startTime, time.Now())
	if err != nil {
		return err
	}

	startTime = time.Now()
	defer func() {
		d.result.BuildInfo.Stages = api.RecordStageAndStepInfo(d.result.BuildInfo.Stages, api.StageCreateDockerfile, api.StepRenderDockerfile, startTime, time.Now())
	}()

	log.V(2).Infof("\n%s\n", describe.Config(config))
	labels := util.GenerateOutputImageLabels(info, config, projectDir)
	spec, err := build.NewImageSpec(config, labels)
	if err != nil {
		return err
	}
	content, err := Render(spec)
	if err != nil {
		return errors.NewDockerfileCreateError(dockerfilePath, err)
	}
	if err := d.fs.WriteFile(dockerfilePath, []byte(content)); err != nil {
		return errors.NewDockerfileCreateError(dockerfilePath, err)
	}
	d.result.Dockerfile = content
	log.V(1).Infof("Wrote %s", dockerfilePath)
	return nil
}

// EnsureBuildDir creates a temporary build directory when none is
// configured. It is removed by Cleanup.
func (d *Dockerfile) EnsureBuildDir(config *api.Config) error {
	if len(config.BuildDir) == 0 {
		dir, err := d.fs.CreateWorkingDirectory()
		if err != nil {
			return err
		}
		config.BuildDir = dir
		d.tempDir = true
	}
	d.result.BuildDir = config.BuildDir
	return nil
}

// CopySource copies projectDir/SourceDir to contextDir/SourceDir, skipping
// paths matched by the project's ignore file. Ignore globs are relative to
// projectDir, like a .dockerignore next to the Dockerfile, so
// "src/memos/secret.py" names a file in the copied tree. Nothing is copied
// when both locations are the same directory.
func (d *Dockerfile) CopySource(config *api.Config, projectDir, contextDir string) error {
	from := filepath.Join(projectDir, filepath.FromSlash(config.SourceDir))
	to := filepath.Join(contextDir, filepath.FromSlash(config.SourceDir))

	absFrom, err := filepath.Abs(from)
	if err != nil {
		return errors.NewSourceCopyFailedError(from, err)
	}
	absTo, err := filepath.Abs(to)
	if err != nil {
		return errors.NewSourceCopyFailedError(from, err)
	}
	if absFrom == absTo {
		log.V(2).Infof("Source %s is already in the build context", from)
		return nil
	}

	matcher, err := ignore.NewMatcher(filepath.Join(projectDir, config.IgnoreFile))
	if err != nil {
		return errors.NewSourceCopyFailedError(from, err)
	}
	log.V(1).Infof("Copying %s to %s", from, to)
	sourceDir := path.Clean(filepath.ToSlash(config.SourceDir))
	ignored := func(rel string) bool {
		return matcher.Match(path.Join(sourceDir, rel))
	}
	if err := d.fs.Copy(from, to, ignored); err != nil {
		return errors.NewSourceCopyFailedError(from, err)
	}
	return nil
}

// Cleanup removes the temporary working directory unless it is preserved.
func (d *Dockerfile) Cleanup(config *api.Config) {
	if !d.tempDir || config.PreserveBuildDir {
		return
	}
	if err := d.fs.RemoveDirectory(config.BuildDir); err != nil {
		log.Warningf("Unable to remove %s: %v", config.BuildDir, err)
	}
}

// Render returns the Dockerfile text of spec. The output is parsed back with
// the BuildKit parser and must contain one instruction per directive.
func Render(spec *api.ImageSpec) (string, error) {
	var buf bytes.Buffer
	for _, d := range spec.Directives {
		switch d.Kind {
		case api.DirectiveEnv:
			buf.WriteString(scripts.ConvertEnvironmentToDocker(d.Pairs))
		case api.DirectiveLabel:
			buf.WriteString(scripts.ConvertLabelsToDocker(d.Pairs))
		case api.DirectiveCmd:
			args, err := execForm(d.Args)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&buf, "%s %s\n", d.Kind, args)
		default:
			fmt.Fprintf(&buf, "%s %s\n", d.Kind, strings.Join(d.Args, " "))
		}
	}

	if err := verify(buf.Bytes(), spec.Directives); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func execForm(args []string) (string, error) {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, string(b))
	}
	return "[" + strings.Join(quoted, ", ") + "]", nil
}

func verify(content []byte, directives []api.Directive) error {
	res, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("generated Dockerfile is invalid: %v", err)
	}
	if len(res.AST.Children) != len(directives) {
		return fmt.Errorf("generated Dockerfile has %d instructions, expected %d", len(res.AST.Children), len(directives))
	}
	for i, node := range res.AST.Children {
		if !strings.EqualFold(node.Value, string(directives[i].Kind)) {
			return fmt.Errorf("instruction %d is %s, expected %s", i+1, strings.ToUpper(node.Value), directives[i].Kind)
		}
	}
	return nil
}
