// Package config persists the command line options of a build into the
// options file of the project, so a later invocation with --use-config
// repeats them.
package config

import (
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// Options is the content of the options file.
type Options struct {
	Command string              `yaml:"command"`
	Args    []string            `yaml:"args,omitempty"`
	Flags   map[string][]string `yaml:"flags,omitempty"`
}

// DefaultPath is the options file in the current directory.
var DefaultPath = constants.OptionsFile

// Save stores the flags set on the command line and the positional
// arguments of cmd into path.
func Save(path string, cmd *cobra.Command, args []string) error {
	opts := Options{
		Command: cmd.Name(),
		Args:    args,
		Flags:   map[string][]string{},
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "use-config" {
			return
		}
		opts.Flags[f.Name] = flagValues(f)
	})
	data, err := yaml.Marshal(&opts)
	if err != nil {
		return err
	}
	log.V(1).Infof("Saving options to %s", path)
	return os.WriteFile(path, data, 0644)
}

// Restore applies the options stored in path to cmd. Flags already set on
// the command line win. The stored positional arguments are returned when
// args is empty. A missing file is not an error.
func Restore(path string, cmd *cobra.Command, args []string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.V(1).Infof("No options file at %s", path)
		return args, nil
	}
	if err != nil {
		return args, err
	}
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return args, err
	}
	if len(opts.Command) > 0 && opts.Command != cmd.Name() {
		log.Warningf("Options in %s were saved by %q, applying them to %q", path, opts.Command, cmd.Name())
	}

	names := make([]string, 0, len(opts.Flags))
	for name := range opts.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			log.Warningf("Ignoring unknown option %q from %s", name, path)
			continue
		}
		if f.Changed {
			continue
		}
		if err := setFlag(f, opts.Flags[name]); err != nil {
			return args, err
		}
	}
	if len(args) == 0 {
		args = opts.Args
	}
	return args, nil
}

func flagValues(f *pflag.Flag) []string {
	if s, ok := f.Value.(pflag.SliceValue); ok {
		return s.GetSlice()
	}
	return []string{f.Value.String()}
}

func setFlag(f *pflag.Flag, values []string) error {
	if s, ok := f.Value.(pflag.SliceValue); ok {
		return s.Replace(values)
	}
	for _, v := range values {
		if err := f.Value.Set(v); err != nil {
			return err
		}
	}
	return nil
}
