package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	cmdutil "github.com/memtensor/memos-bootstrap/pkg/cmd"
	"github.com/memtensor/memos-bootstrap/pkg/create"
)

// NewCmdCreate implements the create command.
func NewCmdCreate(cfg *api.Config) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create <destination> [<name>]",
		Short: "Bootstrap a new project",
		Long: "Write a minimal project inside the destination directory: the application module " +
			"named by --app, its packages, the ignore file and the settings example. Existing files are kept.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := filepath.Base(args[0])
			if len(args) == 2 {
				name = args[1]
			}
			if err := cmdutil.Complete(cfg); err != nil {
				return err
			}
			b := create.New(name, args[0], cfg)
			if err := b.AddSource(); err != nil {
				return err
			}
			return b.AddConfig()
		},
	}
	cmdutil.AddImageFlags(createCmd, cfg)
	createCmd.Flags().StringVar(&(cfg.AppTarget), "app", constants.DefaultAppTarget, "Specify the application in module:attribute form")
	return createCmd
}
