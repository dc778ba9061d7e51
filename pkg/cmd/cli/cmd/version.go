package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/memtensor/memos-bootstrap/pkg/version"
)

// NewCmdVersion implements the version command.
func NewCmdVersion() *cobra.Command {
	verbose := false
	c := &cobra.Command{
		Use:   "version",
		Short: "Display version",
		Long:  "Display version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if !verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "memos-bootstrap %v\n", info)
				return nil
			}
			data, err := yaml.Marshal(info)
			if err != nil {
				return err
			}
			cmd.OutOrStdout().Write(data)
			return nil
		},
	}
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the build details")
	return c
}
