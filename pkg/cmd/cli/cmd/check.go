package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/build"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/dockerfile"
	cmdutil "github.com/memtensor/memos-bootstrap/pkg/cmd"
)

// NewCmdCheck implements the check command.
func NewCmdCheck(cfg *api.Config) *cobra.Command {
	offline := false
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the options and print the resulting Dockerfile",
		Long: "Validate the options, render the Dockerfile to standard output and, unless " +
			"--offline is given, check that the container engine answers and the base image resolves.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdutil.Complete(cfg); err != nil {
				return err
			}
			spec, err := build.NewImageSpec(cfg, nil)
			if err != nil {
				return err
			}
			content, err := dockerfile.Render(spec)
			if err != nil {
				return err
			}
			if !cfg.Quiet {
				fmt.Fprint(cmd.OutOrStdout(), content)
			}
			if offline {
				return nil
			}

			ctx := cmd.Context()
			d, err := cmdutil.NewDocker(ctx, cfg)
			if err != nil {
				return err
			}
			image, err := d.CheckAndPullImage(ctx, cfg.BaseImage, cfg.PullPolicy)
			if err != nil {
				return err
			}
			log.V(1).Infof("Base image %s resolved to %s", cfg.BaseImage, image.ID)
			return nil
		},
	}
	cmdutil.AddCommonFlags(checkCmd, cfg)
	checkCmd.Flags().BoolVar(&offline, "offline", false, "Skip the container engine checks")
	return checkCmd
}
