// Package version reports the version of the bootstrap, set at link time
// with -ldflags "-X github.com/memtensor/memos-bootstrap/pkg/version.gitVersion=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	// commitFromGit is the git sha1.
	commitFromGit string
	// gitVersion is the output of git describe.
	gitVersion = "v0.0.0-dev"
	// buildDate in ISO8601 format.
	buildDate string
)

// Info contains versioning information.
type Info struct {
	GitVersion string `yaml:"gitVersion"`
	GitCommit  string `yaml:"gitCommit,omitempty"`
	BuildDate  string `yaml:"buildDate,omitempty"`
	GoVersion  string `yaml:"goVersion"`
	Platform   string `yaml:"platform"`
}

// Get returns the overall codebase version.
func Get() Info {
	return Info{
		GitVersion: gitVersion,
		GitCommit:  commitFromGit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns info as a human-friendly version string.
func (info Info) String() string {
	if len(info.GitCommit) == 0 {
		return info.GitVersion
	}
	return fmt.Sprintf("%s-%s", info.GitVersion, info.GitCommit)
}
