// Package cli assembles the memos-bootstrap command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	cmdutil "github.com/memtensor/memos-bootstrap/pkg/cmd"
	"github.com/memtensor/memos-bootstrap/pkg/cmd/cli/cmd"
)

// CommandFor returns the appropriate command for this base name,
// or the memos-bootstrap command by default.
func CommandFor() *cobra.Command {
	cfg := &api.Config{}
	root := &cobra.Command{
		Use: "memos-bootstrap",
		Long: "memos-bootstrap builds and starts the memos service.\n\n" +
			"It layers the application source on the prebuilt base image " + constants.DefaultBaseImage + ",\n" +
			"and starts the ASGI server either in a container or as a local process.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			return c.Help()
		},
	}
	cmdutil.AddDockerFlags(root, cfg)
	cmdutil.SetupLogLevel(root.PersistentFlags())

	// Every command binds its flags to its own Config; only the docker
	// connection is shared.
	forCommand := func() *api.Config {
		return &api.Config{DockerConfig: cfg.DockerConfig}
	}
	root.AddCommand(cmd.NewCmdVersion())
	root.AddCommand(cmd.NewCmdBuild(forCommand()))
	root.AddCommand(cmd.NewCmdRun(forCommand()))
	root.AddCommand(cmd.NewCmdLaunch(forCommand()))
	root.AddCommand(cmd.NewCmdGenerate(forCommand()))
	root.AddCommand(cmd.NewCmdCheck(forCommand()))
	root.AddCommand(cmd.NewCmdCreate(forCommand()))
	return root
}
