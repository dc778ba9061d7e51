package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/distribution/reference"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
)

var (
	envNameRegexp   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	moduleRegexp    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	attributeRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Error describes a single invalid field.
type Error struct {
	Field string
	Value interface{}
	Msg   string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, fmt.Sprint(e.Value), e.Msg)
}

// ValidateConfig returns a list of every problem found in config.
func ValidateConfig(config *api.Config) []error {
	var errs []error

	if len(config.BaseImage) == 0 {
		errs = append(errs, Error{"base-image", config.BaseImage, "must be set"})
	} else if _, err := reference.ParseNormalizedNamed(config.BaseImage); err != nil {
		errs = append(errs, Error{"base-image", config.BaseImage, err.Error()})
	}

	if len(config.Tag) > 0 {
		if _, err := reference.ParseNormalizedNamed(config.Tag); err != nil {
			errs = append(errs, Error{"tag", config.Tag, err.Error()})
		}
	}

	if !path.IsAbs(config.WorkDir) {
		errs = append(errs, Error{"workdir", config.WorkDir, "must be an absolute path"})
	}

	if len(config.SourceDir) == 0 || path.IsAbs(config.SourceDir) || strings.HasPrefix(path.Clean(config.SourceDir), "..") {
		errs = append(errs, Error{"source-dir", config.SourceDir, "must be a relative path inside the project"})
	}

	if !ValidPort(config.Port) {
		errs = append(errs, Error{"port", config.Port, "must be between 1 and 65535"})
	}
	if config.HostPort != 0 && !ValidPort(config.HostPort) {
		errs = append(errs, Error{"host-port", config.HostPort, "must be between 1 and 65535"})
	}

	if err := ValidateAppTarget(config.AppTarget); err != nil {
		errs = append(errs, Error{"app", config.AppTarget, err.Error()})
	}

	if len(config.ServerCommand) == 0 {
		errs = append(errs, Error{"server-command", config.ServerCommand, "must be set"})
	}

	if !CoversDestination(config.ImportPathEntries(), config.SourceDestination()) {
		errs = append(errs, Error{"import-path", config.ImportPath,
			fmt.Sprintf("must contain %s or one of its parents", config.SourceDestination())})
	}

	for _, e := range config.Environment {
		if !envNameRegexp.MatchString(e.Name) {
			errs = append(errs, Error{"env", e.Name, "is not a valid environment variable name"})
		}
		if e.Name == constants.ImportPathEnv {
			errs = append(errs, Error{"env", e.Name, "use --import-path instead"})
		}
	}

	if len(config.WithBuilder) > 0 {
		switch config.WithBuilder {
		case constants.DockerBuilder, constants.PodmanBuilder, constants.BuildahBuilder:
		default:
			errs = append(errs, Error{"with-builder", config.WithBuilder, "must be one of docker, podman or buildah"})
		}
	}

	return errs
}

// ValidPort reports whether p is a usable TCP port.
func ValidPort(p int) bool {
	return p > 0 && p <= 65535
}

// ValidateAppTarget checks the "module:attribute" form of an ASGI target.
func ValidateAppTarget(target string) error {
	module, attr, ok := strings.Cut(target, ":")
	if !ok {
		return fmt.Errorf("must be in module:attribute form")
	}
	if !moduleRegexp.MatchString(module) {
		return fmt.Errorf("invalid module %q", module)
	}
	if !attributeRegexp.MatchString(attr) {
		return fmt.Errorf("invalid attribute %q", attr)
	}
	return nil
}

// CoversDestination reports whether an import path entry is dest or one of
// its parents, so that the copied tree is importable.
func CoversDestination(importPath []string, dest string) bool {
	dest = path.Clean(dest)
	for _, p := range importPath {
		p = path.Clean(p)
		if p == dest {
			return true
		}
		if strings.HasPrefix(dest, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
