package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	"github.com/memtensor/memos-bootstrap/pkg/api/describe"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies"
	cmdutil "github.com/memtensor/memos-bootstrap/pkg/cmd"
	"github.com/memtensor/memos-bootstrap/pkg/config"
	"github.com/memtensor/memos-bootstrap/pkg/docker"
	"github.com/memtensor/memos-bootstrap/pkg/run"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
	"github.com/memtensor/memos-bootstrap/pkg/version"
)

var log = utillog.StderrLog

// NewCmdBuild implements the build command.
func NewCmdBuild(cfg *api.Config) *cobra.Command {
	useConfig := false

	buildCmd := &cobra.Command{
		Use:   "build [<source>] [<tag>]",
		Short: "Build the service image",
		Long: "Build a new image named <tag> (default " + constants.DefaultTag + ") by layering the " +
			"source directory of <source> (a local directory or a git repository) on the base image.",
		Example: `
# Build the image from the current directory
$ memos-bootstrap build . memos:dev

# Build from a remote Git repository without the download mirror
$ memos-bootstrap build https://github.com/MemTensor/MemOS memos:dev --mirror-endpoint=""

# Build with podman and start the result
$ memos-bootstrap build . memos:dev --with-builder=podman
`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.V(1).Infof("Running memos-bootstrap version %q", version.Get())

			if useConfig {
				var err error
				if args, err = config.Restore(config.DefaultPath, cmd, args); err != nil {
					return err
				}
			}
			if len(args) >= 1 {
				cfg.Source = args[0]
			}
			if len(args) >= 2 {
				cfg.Tag = args[1]
			}
			if err := cmdutil.Complete(cfg); err != nil {
				return err
			}
			if useConfig {
				if err := config.Save(config.DefaultPath, cmd, args); err != nil {
					log.Warningf("Unable to save options: %v", err)
				}
			}
			log.V(2).Infof("\n%s\n", describe.Config(cfg))

			ctx := cmd.Context()
			var d docker.Docker
			if (len(cfg.AsDockerfile) == 0 && len(cfg.WithBuilder) == 0) || cfg.RunImage {
				var err error
				if d, err = cmdutil.NewDocker(ctx, cfg); err != nil {
					return err
				}
			}

			builder, _, err := strategies.GetStrategy(d, cfg)
			if err != nil {
				return err
			}
			result, err := builder.Build(ctx, cfg)
			if err != nil {
				return err
			}
			for _, message := range result.Messages {
				log.V(1).Info(message)
			}

			if cfg.RunImage {
				tracker := run.NewTracker()
				runner := run.New(d, tracker)
				return cmdutil.ServeUnit(ctx, cfg, tracker, func(ctx context.Context) error {
					return runner.Run(ctx, cfg)
				})
			}
			return nil
		},
	}

	cmdutil.AddCommonFlags(buildCmd, cfg)
	cmdutil.AddAdminFlags(buildCmd, cfg)
	buildCmd.Flags().BoolVar(&(cfg.RunImage), "run", false, "Run resulting image as part of invocation of this command")
	buildCmd.Flags().IntVar(&(cfg.HostPort), "host-port", 0, "Specify the host port the image port is published on (default: --port)")
	buildCmd.Flags().BoolVar(&(useConfig), "use-config", false, "Store command line options to "+constants.OptionsFile)
	buildCmd.Flags().StringVar(&(cfg.WithBuilder), "with-builder", "",
		"Build with an external command (docker, podman or buildah) instead of the engine API")
	buildCmd.Flags().StringVar(&(cfg.AsDockerfile), "as-dockerfile", "",
		"Only write the Dockerfile and its build context to this path")
	return buildCmd
}
