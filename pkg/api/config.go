package api

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
)

// NewConfig returns a Config with the memos defaults applied.
func NewConfig() *Config {
	cfg := &Config{
		MirrorEndpoint: constants.DefaultMirrorEndpoint,
		Reload:         true,
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every unset field with its default. The mirror endpoint
// is left alone: an explicitly empty mirror stays empty.
func (c *Config) SetDefaults() {
	if len(c.BaseImage) == 0 {
		c.BaseImage = constants.DefaultBaseImage
	}
	if len(c.WorkDir) == 0 {
		c.WorkDir = constants.DefaultWorkDir
	}
	if len(c.Source) == 0 {
		c.Source = "."
	}
	if len(c.SourceDir) == 0 {
		c.SourceDir = constants.DefaultSourceDir
	}
	if len(c.ImportPath) == 0 {
		c.ImportPath = c.SourceDestination()
	}
	if c.Port == 0 {
		c.Port = constants.DefaultPort
	}
	if len(c.Host) == 0 {
		c.Host = constants.DefaultHost
	}
	if len(c.AppTarget) == 0 {
		c.AppTarget = constants.DefaultAppTarget
	}
	if len(c.ServerCommand) == 0 {
		c.ServerCommand = constants.DefaultServerCommand
	}
	if len(c.RequirementsFile) == 0 {
		c.RequirementsFile = constants.DefaultRequirementsFile
	}
	if len(c.IgnoreFile) == 0 {
		c.IgnoreFile = constants.DefaultIgnoreFile
	}
	if len(c.PullPolicy) == 0 {
		c.PullPolicy = DefaultPullPolicy
	}
	if len(c.Tag) == 0 {
		c.Tag = constants.DefaultTag
	}
	if c.HostPort == 0 {
		c.HostPort = c.Port
	}
}

// SourceDestination is the absolute directory, inside the image, receiving
// the copied source tree.
func (c *Config) SourceDestination() string {
	return path.Join(c.WorkDir, filepath.ToSlash(c.SourceDir))
}

// ImportPathEntries splits ImportPath on ':'.
func (c *Config) ImportPathEntries() []string {
	var entries []string
	for _, p := range strings.Split(c.ImportPath, ":") {
		if len(p) > 0 {
			entries = append(entries, p)
		}
	}
	return entries
}

// RuntimeConfig resolves the immutable launch configuration. Environment
// order follows the image: mirror, import path, then user variables.
func (c *Config) RuntimeConfig() RuntimeConfig {
	env := EnvironmentList{}
	if len(c.MirrorEndpoint) > 0 {
		env = append(env, EnvironmentSpec{Name: constants.MirrorEndpointEnv, Value: c.MirrorEndpoint})
	}
	env = append(env, EnvironmentSpec{Name: constants.ImportPathEnv, Value: c.ImportPath})
	env = append(env, c.Environment...)
	return RuntimeConfig{
		ServerCommand: c.ServerCommand,
		AppTarget:     c.AppTarget,
		Host:          c.Host,
		Port:          c.Port,
		Reload:        c.Reload,
		WorkDir:       c.WorkDir,
		ImportPath:    c.ImportPathEntries(),
		Environment:   env,
	}
}
