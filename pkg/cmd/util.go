package cmd

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/memtensor/memos-bootstrap/pkg/admin"
	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	"github.com/memtensor/memos-bootstrap/pkg/api/validation"
	"github.com/memtensor/memos-bootstrap/pkg/docker"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
	"github.com/memtensor/memos-bootstrap/pkg/run"
	"github.com/memtensor/memos-bootstrap/pkg/util"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// AddCommonFlags adds the flags shared by the build, generate and check
// commands.
func AddCommonFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().BoolVarP(&(cfg.Quiet), "quiet", "q", false,
		"Operate quietly. Suppress all non-error output.")
	c.Flags().VarP(&(cfg.PullPolicy), "pull-policy", "p",
		"Specify when to pull the base image (always, never or if-not-present)")
	c.Flags().BoolVar(&(cfg.PreserveBuildDir), "save-temp-dir", false,
		"Save the temporary directory used to prepare the build context instead of deleting it")
	c.Flags().StringVar(&(cfg.DockerCfgPath), "dockercfg-path", docker.DefaultConfigPath(),
		"Specify the path to the Docker configuration file")
	c.Flags().StringVarP(&(cfg.Ref), "ref", "r", "", "Specify a ref to check-out")
	c.Flags().StringVar(&(cfg.ContextDir), "context-dir", "",
		"Specify the sub-directory inside the repository with the application sources")
	c.Flags().BoolVar(&(cfg.InstallDependencies), "install-deps", false,
		"Install "+constants.DefaultRequirementsFile+" during the build instead of relying on the base image")
	c.Flags().StringVarP(&(cfg.DisplayName), "application-name", "n", "",
		"Specify the display name for the application (default: output image name)")
	c.Flags().StringVar(&(cfg.Description), "description", "", "Specify the description of the application")
	AddImageFlags(c, cfg)
	AddRuntimeFlags(c, cfg)
}

// AddImageFlags adds the flags describing the image layout.
func AddImageFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().StringVar(&(cfg.BaseImage), "base-image", constants.DefaultBaseImage,
		"Specify the versioned base image the source is layered on")
	c.Flags().StringVar(&(cfg.WorkDir), "workdir", constants.DefaultWorkDir,
		"Specify the working directory inside the image")
	c.Flags().StringVar(&(cfg.SourceDir), "source-dir", constants.DefaultSourceDir,
		"Specify the project directory copied into the working directory")
	c.Flags().StringVar(&(cfg.IgnoreFile), "ignore-file", constants.DefaultIgnoreFile,
		"Specify the file listing source files excluded from the copy")
}

// AddRuntimeFlags adds the flags describing how the server is started.
func AddRuntimeFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().StringVar(&(cfg.MirrorEndpoint), "mirror-endpoint", constants.DefaultMirrorEndpoint,
		"Specify the download mirror exported as "+constants.MirrorEndpointEnv+" (empty to omit)")
	c.Flags().StringVar(&(cfg.ImportPath), "import-path", "",
		"Specify the "+constants.ImportPathEnv+" value (default: <workdir>/<source-dir>)")
	c.Flags().IntVar(&(cfg.Port), "port", constants.DefaultPort,
		"Specify the port exposed by the image and bound by the server")
	c.Flags().StringVar(&(cfg.Host), "host", constants.DefaultHost, "Specify the bind address of the server")
	c.Flags().StringVar(&(cfg.AppTarget), "app", constants.DefaultAppTarget,
		"Specify the application in module:attribute form")
	c.Flags().StringVar(&(cfg.ServerCommand), "server-command", constants.DefaultServerCommand,
		"Specify the ASGI server executable")
	c.Flags().BoolVar(&(cfg.Reload), "reload", true, "Restart the server when the source changes")
	c.Flags().VarP(&(cfg.Environment), "env", "e", "Specify an single environment variable in NAME=VALUE format")
	c.Flags().StringVarP(&(cfg.EnvironmentFile), "environment-file", "E", "",
		"Specify the path to the file with environment")
}

// AddAdminFlags adds the status endpoint flag.
func AddAdminFlags(c *cobra.Command, cfg *api.Config) {
	c.Flags().StringVar(&(cfg.AdminAddr), "admin-addr", "",
		"Serve the state of the unit on this address (for example 127.0.0.1:9005)")
}

// AddDockerFlags adds the flags configuring the docker connection.
func AddDockerFlags(c *cobra.Command, cfg *api.Config) {
	cfg.DockerConfig = docker.GetDefaultDockerConfig()
	c.PersistentFlags().StringVarP(&(cfg.DockerConfig.Endpoint), "url", "U", cfg.DockerConfig.Endpoint, "Set the url of the docker socket to use")
	c.PersistentFlags().StringVar(&(cfg.DockerConfig.CertFile), "cert", cfg.DockerConfig.CertFile, "Set the path of the docker TLS certificate file")
	c.PersistentFlags().StringVar(&(cfg.DockerConfig.KeyFile), "key", cfg.DockerConfig.KeyFile, "Set the path of the docker TLS key file")
	c.PersistentFlags().StringVar(&(cfg.DockerConfig.CAFile), "ca", cfg.DockerConfig.CAFile, "Set the path of the docker TLS ca file")
	c.PersistentFlags().BoolVar(&(cfg.DockerConfig.UseTLS), "tls", cfg.DockerConfig.UseTLS, "Use TLS to connect to docker; implied by --tlsverify")
	c.PersistentFlags().BoolVar(&(cfg.DockerConfig.TLSVerify), "tlsverify", cfg.DockerConfig.TLSVerify, "Use TLS to connect to docker and verify the remote")
}

// SetupLogLevel makes --loglevel reflect in klog's -v flag.
func SetupLogLevel(flags *pflag.FlagSet) {
	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	klogFlags.Set("logtostderr", "true")
	flags.Var(&logLevel{klogFlags.Lookup("v")}, "loglevel", "Set the level of log output (0-5)")
}

type logLevel struct {
	v *goflag.Flag
}

func (l *logLevel) String() string {
	if l.v == nil {
		return "0"
	}
	return l.v.Value.String()
}

func (l *logLevel) Set(value string) error {
	if _, err := strconv.Atoi(value); err != nil {
		return fmt.Errorf("invalid log level %q", value)
	}
	return l.v.Value.Set(value)
}

func (l *logLevel) Type() string {
	return "int"
}

// Complete resolves the defaults that depend on other options, reads the
// environment file and validates the result.
func Complete(cfg *api.Config) error {
	if len(cfg.EnvironmentFile) > 0 {
		env, err := util.EnvironmentFromFile(cfg.EnvironmentFile)
		if err != nil {
			return errors.NewInvalidConfigError([]error{fmt.Errorf("unable to read environment file %q: %v", cfg.EnvironmentFile, err)})
		}
		cfg.Environment = append(env, cfg.Environment...)
	}
	cfg.SetDefaults()
	if errs := validation.ValidateConfig(cfg); len(errs) > 0 {
		return errors.NewInvalidConfigError(errs)
	}
	if len(cfg.DockerCfgPath) > 0 {
		cfg.PullAuthentication = docker.LoadImageRegistryAuth(cfg.DockerCfgPath, cfg.BaseImage)
	}
	return nil
}

// NewDocker connects to the engine configured in cfg and checks it answers.
func NewDocker(ctx context.Context, cfg *api.Config) (docker.Docker, error) {
	if cfg.DockerConfig == nil {
		cfg.DockerConfig = docker.GetDefaultDockerConfig()
	}
	client, err := docker.NewEngineAPIClient(cfg.DockerConfig)
	if err != nil {
		return nil, errors.NewDockerConnectionError(cfg.DockerConfig.Endpoint, err)
	}
	d := docker.New(client, cfg.PullAuthentication)
	if err := d.CheckReachable(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// ServeUnit runs fn and, when cfg.AdminAddr is set, the status endpoint next
// to it. The status endpoint stops once fn returns.
func ServeUnit(ctx context.Context, cfg *api.Config, tracker *run.Tracker, fn func(context.Context) error) error {
	if len(cfg.AdminAddr) == 0 {
		return fn(ctx)
	}
	adminCtx, cancel := context.WithCancel(ctx)
	g := errgroup.Group{}
	g.Go(func() error {
		if err := admin.Serve(adminCtx, cfg.AdminAddr, tracker, cfg); err != nil {
			log.Warningf("Status endpoint stopped: %v", err)
		}
		return nil
	})
	err := fn(ctx)
	cancel()
	g.Wait()
	return err
}

// CheckErr prints err with its suggested solution and exits with its code.
func CheckErr(err error) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case errors.Error:
		log.Errorf("An error occurred: %v", e)
		if len(e.Suggestion) > 0 {
			log.Errorf("Suggested solution: %v", e.Suggestion)
		}
		if e.Details != nil {
			log.V(1).Infof("Details: %v", e.Details)
		}
		log.Error("If the problem persists, run the command again with --loglevel=3 and include the log in your report.")
		exit(e.ErrorCode)
	case errors.ContainerError:
		log.Errorf("An error occurred: %v", e)
		if len(e.Suggestion) > 0 {
			log.Errorf("Suggested solution: %v", e.Suggestion)
		}
		exit(e.ErrorCode)
	default:
		log.Errorf("An error occurred: %v", err)
		exit(1)
	}
}

func exit(code int) {
	klog.Flush()
	os.Exit(code)
}
