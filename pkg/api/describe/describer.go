package describe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/util"
)

// Config returns the Config object in nice readable, tabbed format.
func Config(c *api.Config) string {
	out, err := tabbedString(func(out io.Writer) error {
		fmt.Fprintf(out, "Base Image:\t%s\n", c.BaseImage)
		fmt.Fprintf(out, "Base Image Pull Policy:\t%s\n", c.PullPolicy)
		fmt.Fprintf(out, "Source:\t%s\n", c.Source)
		if len(c.Ref) > 0 {
			fmt.Fprintf(out, "Source Ref:\t%s\n", c.Ref)
		}
		if len(c.ContextDir) > 0 {
			fmt.Fprintf(out, "Context Directory:\t%s\n", c.ContextDir)
		}
		fmt.Fprintf(out, "Source Directory:\t%s -> %s\n", c.SourceDir, c.SourceDestination())
		fmt.Fprintf(out, "Workdir:\t%s\n", c.WorkDir)
		fmt.Fprintf(out, "Output Image Tag:\t%s\n", c.Tag)
		if len(c.MirrorEndpoint) > 0 {
			fmt.Fprintf(out, "Mirror Endpoint:\t%s\n", c.MirrorEndpoint)
		}
		fmt.Fprintf(out, "Import Path:\t%s\n", c.ImportPath)
		printEnv(out, c.Environment)
		if len(c.EnvironmentFile) > 0 {
			fmt.Fprintf(out, "Environment File:\t%s\n", c.EnvironmentFile)
		}
		fmt.Fprintf(out, "Port:\t%d\n", c.Port)
		fmt.Fprintf(out, "Start Command:\t%s\n", strings.Join(c.RuntimeConfig().Args(), " "))
		fmt.Fprintf(out, "Install Dependencies:\t%s\n", printBool(c.InstallDependencies))
		if len(c.WithBuilder) > 0 {
			fmt.Fprintf(out, "Builder:\t%s\n", c.WithBuilder)
		}
		if len(c.AsDockerfile) > 0 {
			fmt.Fprintf(out, "Dockerfile:\t%s\n", c.AsDockerfile)
		}
		if c.DockerConfig != nil {
			fmt.Fprintf(out, "Docker Endpoint:\t%s\n", c.DockerConfig.Endpoint)
		}
		if _, err := os.Stat(c.DockerCfgPath); err == nil {
			fmt.Fprintf(out, "Docker Pull Config:\t%s\n", c.DockerCfgPath)
			fmt.Fprintf(out, "Docker Pull User:\t%s\n", c.PullAuthentication.Username)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("error: %v", err)
	}
	return out
}

func printEnv(out io.Writer, env api.EnvironmentList) {
	if len(env) == 0 {
		return
	}
	result := util.StripProxyCredentials(env.Strings())
	fmt.Fprintf(out, "Environment:\t%s\n", strings.Join(result, ","))
}

func printBool(b bool) string {
	if b {
		return "\033[1menabled\033[0m"
	}
	return "disabled"
}

func tabbedString(f func(io.Writer) error) (string, error) {
	out := new(tabwriter.Writer)
	buf := &bytes.Buffer{}
	out.Init(buf, 0, 8, 1, '\t', 0)

	err := f(out)
	if err != nil {
		return "", err
	}

	out.Flush()
	return buf.String(), nil
}
