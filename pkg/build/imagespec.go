package build

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	"github.com/memtensor/memos-bootstrap/pkg/api/validation"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
)

// NewImageSpec derives the image description from config. It has no side
// effects. Directives are emitted in a fixed order: base, working directory,
// mirror environment, source copy, import path environment, exposed port,
// start command. Labels and the optional dependency install never reorder
// those steps.
func NewImageSpec(config *api.Config, labels map[string]string) (*api.ImageSpec, error) {
	if errs := validation.ValidateConfig(config); len(errs) > 0 {
		return nil, errors.NewInvalidConfigError(errs)
	}

	runtime := config.RuntimeConfig()
	dest := config.SourceDestination()
	src := filepath.ToSlash(path.Clean(config.SourceDir))

	spec := &api.ImageSpec{
		BaseImage:   config.BaseImage,
		WorkDir:     config.WorkDir,
		ExposedPort: config.Port,
		Runtime:     runtime,
		Labels:      labels,
	}

	add := func(d api.Directive) {
		spec.Directives = append(spec.Directives, d)
	}

	add(api.Directive{Kind: api.DirectiveFrom, Args: []string{config.BaseImage}})
	add(api.Directive{Kind: api.DirectiveWorkdir, Args: []string{config.WorkDir}})
	if len(config.MirrorEndpoint) > 0 {
		add(api.Directive{Kind: api.DirectiveEnv, Pairs: api.EnvironmentList{
			{Name: constants.MirrorEndpointEnv, Value: config.MirrorEndpoint},
		}})
	}
	add(api.Directive{Kind: api.DirectiveCopy, Args: []string{src + "/", dest + "/"}})
	if config.InstallDependencies {
		add(api.Directive{Kind: api.DirectiveRun, Args: []string{
			"pip", "install", "--no-cache-dir", "-r", path.Join(src, config.RequirementsFile),
		}})
	}

	env := api.EnvironmentList{{Name: constants.ImportPathEnv, Value: config.ImportPath}}
	env = append(env, config.Environment...)
	add(api.Directive{Kind: api.DirectiveEnv, Pairs: env})

	add(api.Directive{Kind: api.DirectiveExpose, Args: []string{strconv.Itoa(config.Port)}})
	if len(labels) > 0 {
		add(api.Directive{Kind: api.DirectiveLabel, Pairs: sortedPairs(labels)})
	}
	add(api.Directive{Kind: api.DirectiveCmd, Args: runtime.Args()})

	if err := Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks the invariants of an ImageSpec: the start command binds the
// exposed port, and the import path covers the copy destination.
func Validate(spec *api.ImageSpec) error {
	var errs []error

	cmds := spec.Find(api.DirectiveCmd)
	if len(cmds) != 1 {
		errs = append(errs, validation.Error{Field: "cmd", Value: len(cmds), Msg: "exactly one start command is required"})
	} else {
		port, err := commandPort(cmds[0].Args)
		switch {
		case err != nil:
			errs = append(errs, validation.Error{Field: "cmd", Value: cmds[0].Args, Msg: err.Error()})
		case port != spec.ExposedPort:
			errs = append(errs, validation.Error{Field: "port", Value: port,
				Msg: fmt.Sprintf("start command binds %d but the image exposes %d", port, spec.ExposedPort)})
		}
	}

	exposes := spec.Find(api.DirectiveExpose)
	if len(exposes) != 1 || len(exposes[0].Args) != 1 || exposes[0].Args[0] != strconv.Itoa(spec.ExposedPort) {
		errs = append(errs, validation.Error{Field: "expose", Value: spec.ExposedPort, Msg: "must be declared exactly once"})
	}

	copies := spec.Find(api.DirectiveCopy)
	if len(copies) != 1 || len(copies[0].Args) != 2 {
		errs = append(errs, validation.Error{Field: "copy", Value: len(copies), Msg: "exactly one source copy is required"})
	} else if dest := copies[0].Args[1]; !validation.CoversDestination(spec.Runtime.ImportPath, dest) {
		errs = append(errs, validation.Error{Field: "import-path", Value: spec.Runtime.ImportPath,
			Msg: fmt.Sprintf("does not cover %s", dest)})
	}

	if len(errs) > 0 {
		return errors.NewInvalidConfigError(errs)
	}
	return nil
}

// commandPort returns the value of the --port argument of a start command.
func commandPort(args []string) (int, error) {
	for i, a := range args {
		if a == "--port" && i+1 < len(args) {
			return strconv.Atoi(args[i+1])
		}
	}
	return 0, fmt.Errorf("no --port argument")
}

func sortedPairs(m map[string]string) api.EnvironmentList {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make(api.EnvironmentList, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, api.EnvironmentSpec{Name: k, Value: m[k]})
	}
	return pairs
}
