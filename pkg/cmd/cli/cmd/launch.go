package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	cmdutil "github.com/memtensor/memos-bootstrap/pkg/cmd"
	"github.com/memtensor/memos-bootstrap/pkg/launch"
	"github.com/memtensor/memos-bootstrap/pkg/run"
)

// NewCmdLaunch implements the launch command, the start command of the image
// run in the foreground without a container.
func NewCmdLaunch(cfg *api.Config) *cobra.Command {
	launchCmd := &cobra.Command{
		Use:   "launch",
		Short: "Start the ASGI server locally",
		Long: "Check that the application resolves on the import path and that the port is free, " +
			"then start the server with an environment built only from the options. " +
			"SIGINT/SIGTERM are forwarded to the server.",
		Example: `
# Serve ./src/memos/api/server_api.py on port 8005
$ memos-bootstrap launch

# Inside the image
$ memos-bootstrap launch --workdir /app --reload=false
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.WorkDir) == 0 {
				cfg.WorkDir = "."
			}
			wd, err := filepath.Abs(cfg.WorkDir)
			if err != nil {
				return err
			}
			cfg.WorkDir = wd
			if err := cmdutil.Complete(cfg); err != nil {
				return err
			}
			tracker := run.NewTracker()
			launcher := launch.New(tracker)
			return cmdutil.ServeUnit(cmd.Context(), cfg, tracker, func(ctx context.Context) error {
				return launcher.Run(ctx, cfg)
			})
		},
	}
	cmdutil.AddRuntimeFlags(launchCmd, cfg)
	cmdutil.AddAdminFlags(launchCmd, cfg)
	launchCmd.Flags().StringVar(&(cfg.WorkDir), "workdir", "", "Specify the working directory of the server (default: current directory)")
	launchCmd.Flags().StringVar(&(cfg.SourceDir), "source-dir", constants.DefaultSourceDir,
		"Specify the directory, relative to the working directory, holding the application")
	return launchCmd
}
