package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	cmdutil "github.com/memtensor/memos-bootstrap/pkg/cmd"
	"github.com/memtensor/memos-bootstrap/pkg/run"
)

// NewCmdRun implements the run command.
func NewCmdRun(cfg *api.Config) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Run a built image",
		Long: "Create and start a container from <image> with its port published on the host. " +
			"The command returns when the container exits or on SIGINT/SIGTERM, which stop the container.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Tag = args[0]
			if err := cmdutil.Complete(cfg); err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := cmdutil.NewDocker(ctx, cfg)
			if err != nil {
				return err
			}
			tracker := run.NewTracker()
			runner := run.New(d, tracker)
			return cmdutil.ServeUnit(ctx, cfg, tracker, func(ctx context.Context) error {
				return runner.Run(ctx, cfg)
			})
		},
	}
	cmdutil.AddRuntimeFlags(runCmd, cfg)
	cmdutil.AddAdminFlags(runCmd, cfg)
	runCmd.Flags().IntVar(&(cfg.HostPort), "host-port", 0, "Specify the host port the image port is published on (default: --port)")
	return runCmd
}
