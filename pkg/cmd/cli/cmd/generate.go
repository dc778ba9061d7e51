package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/dockerfile"
	cmdutil "github.com/memtensor/memos-bootstrap/pkg/cmd"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
)

// generateDockerfile generates a Dockerfile with the given configuration.
func generateDockerfile(cmd *cobra.Command, cfg *api.Config) error {
	builder, err := dockerfile.New(cfg, fs.NewFileSystem())
	if err != nil {
		return err
	}
	result, err := builder.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if !cfg.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", cfg.AsDockerfile, len(result.Dockerfile))
	}
	return nil
}

// NewCmdGenerate implements the generate command.
func NewCmdGenerate(cfg *api.Config) *cobra.Command {
	generateCmd := &cobra.Command{
		Use: "generate <output file> [<source>]",
		Short: "Generate a Dockerfile and its build context that can be used " +
			"to produce the image by any tool supporting the format.",
		Example: `
# Generate a Dockerfile next to a copy of ./src:
$ memos-bootstrap generate build/Dockerfile
$ docker build -t memos:dev build
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.AsDockerfile = args[0]
			if len(args) == 2 {
				cfg.Source = args[1]
			}
			if err := cmdutil.Complete(cfg); err != nil {
				return err
			}
			return generateDockerfile(cmd, cfg)
		},
	}

	cmdutil.AddCommonFlags(generateCmd, cfg)
	return generateCmd
}
