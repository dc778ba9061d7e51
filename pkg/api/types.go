package api

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds every parameter of an image build and of the launch of the
// resulting unit.
type Config struct {
	// BaseImage is the versioned image the application source is layered on.
	BaseImage string `yaml:"baseImage,omitempty"`

	// WorkDir is the working directory inside the image.
	WorkDir string `yaml:"workDir,omitempty"`

	// Source is the project location: a local directory or a git URL.
	Source string `yaml:"source,omitempty"`

	// Ref is the git ref to check out when Source is a repository.
	Ref string `yaml:"ref,omitempty"`

	// ContextDir is a sub-directory of a git Source holding the project.
	ContextDir string `yaml:"contextDir,omitempty"`

	// SourceDir is the directory, relative to Source, copied into WorkDir
	// under the same relative name.
	SourceDir string `yaml:"sourceDir,omitempty"`

	// MirrorEndpoint is exported as HF_ENDPOINT. It is opaque to the
	// bootstrap and only consumed by the application.
	MirrorEndpoint string `yaml:"mirrorEndpoint,omitempty"`

	// ImportPath is exported as PYTHONPATH. Defaults to WorkDir/SourceDir.
	ImportPath string `yaml:"importPath,omitempty"`

	// Environment holds additional variables, declared after the import path.
	Environment EnvironmentList `yaml:"environment,omitempty"`

	// EnvironmentFile is a dotenv file whose variables are added to Environment.
	EnvironmentFile string `yaml:"environmentFile,omitempty"`

	// Port is both the exposed port and the port the start command binds.
	Port int `yaml:"port,omitempty"`

	// Host is the bind address of the ASGI server.
	Host string `yaml:"host,omitempty"`

	// AppTarget is the ASGI application in "module:attribute" form.
	AppTarget string `yaml:"appTarget,omitempty"`

	// ServerCommand is the ASGI server executable.
	ServerCommand string `yaml:"serverCommand,omitempty"`

	// Reload enables the server's auto-reload on source changes.
	Reload bool `yaml:"reload"`

	// InstallDependencies adds a dependency installation step after the
	// source copy. Off by default: the base image ships every dependency.
	InstallDependencies bool `yaml:"installDependencies,omitempty"`

	// RequirementsFile is relative to SourceDir.
	RequirementsFile string `yaml:"requirementsFile,omitempty"`

	// Tag is the name given to the built image.
	Tag string `yaml:"tag,omitempty"`

	// Labels are added to the built image.
	Labels map[string]string `yaml:"labels,omitempty"`

	// DisplayName and Description end up in the image labels.
	DisplayName string `yaml:"displayName,omitempty"`
	Description string `yaml:"description,omitempty"`

	// PullPolicy decides when the base image is pulled.
	PullPolicy PullPolicy `yaml:"pullPolicy,omitempty"`

	// DockerConfig describes how to access the container engine.
	DockerConfig *DockerConfig `yaml:"-"`

	// DockerCfgPath is the docker client configuration holding registry auths.
	DockerCfgPath string `yaml:"-"`

	// PullAuthentication is used when pulling the base image.
	PullAuthentication AuthConfig `yaml:"-"`

	// WithBuilder selects an external build command (docker, podman, buildah).
	WithBuilder string `yaml:"withBuilder,omitempty"`

	// AsDockerfile only writes the Dockerfile to this path.
	AsDockerfile string `yaml:"asDockerfile,omitempty"`

	// BuildDir is the temporary directory holding the build context.
	BuildDir string `yaml:"-"`

	// PreserveBuildDir keeps BuildDir after the build.
	PreserveBuildDir bool `yaml:"-"`

	// IgnoreFile, at the project root, lists globs excluded from the copy.
	IgnoreFile string `yaml:"ignoreFile,omitempty"`

	// RunImage runs the image once it is built.
	RunImage bool `yaml:"-"`

	// HostPort is the host port the container port is published on. Defaults
	// to Port.
	HostPort int `yaml:"hostPort,omitempty"`

	// AdminAddr, when set, serves the status endpoint on this address.
	AdminAddr string `yaml:"adminAddr,omitempty"`

	// Quiet suppresses all non-error output.
	Quiet bool `yaml:"-"`
}

// DockerConfig contains the configuration for a Docker connection.
type DockerConfig struct {
	// Endpoint is the docker network endpoint or socket
	Endpoint string

	// CertFile is the certificate file path for a TLS connection
	CertFile string

	// KeyFile is the key file path for a TLS connection
	KeyFile string

	// CAFile is the certificate authority file path for a TLS connection
	CAFile string

	// UseTLS indicates if TLS must be used
	UseTLS bool

	// TLSVerify indicates if TLS peer must be verified
	TLSVerify bool
}

// AuthConfig is our abstraction of the Registry authorization information.
type AuthConfig struct {
	Username      string
	Password      string
	Email         string
	ServerAddress string
}

// PullPolicy specifies a type for the method used to retrieve the base image.
type PullPolicy string

// String implements the String() function of pflags.Value so this can be used as
// command line parameter.
func (p *PullPolicy) String() string {
	if len(string(*p)) == 0 {
		return string(DefaultPullPolicy)
	}
	return string(*p)
}

// Type implements the Type() function of pflags.Value interface
func (p *PullPolicy) Type() string {
	return "string"
}

// Set implements the Set() function of pflags.Value interface
// The valid options are "always", "never" or "if-not-present"
func (p *PullPolicy) Set(v string) error {
	switch v {
	case "always":
		*p = PullAlways
	case "never":
		*p = PullNever
	case "if-not-present":
		*p = PullIfNotPresent
	default:
		return fmt.Errorf("invalid value %q, valid values are: always, never or if-not-present", v)
	}
	return nil
}

const (
	// PullAlways means that we always attempt to pull the latest image.
	PullAlways PullPolicy = "always"

	// PullNever means that we never pull an image, but only use a local image.
	PullNever PullPolicy = "never"

	// PullIfNotPresent means that we pull if the image isn't present on disk.
	PullIfNotPresent PullPolicy = "if-not-present"

	// DefaultPullPolicy specifies the default pull policy for the base image.
	DefaultPullPolicy = PullIfNotPresent
)

// EnvironmentSpec specifies a single environment variable.
type EnvironmentSpec struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// EnvironmentList contains list of environment variables. Order is kept.
type EnvironmentList []EnvironmentSpec

// Set implements the Set() function of pflags.Value interface.
// The value must be in NAME=VALUE form; VALUE may itself contain '='.
func (e *EnvironmentList) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || len(strings.TrimSpace(parts[0])) == 0 {
		return fmt.Errorf("invalid environment format %q, must be NAME=VALUE", value)
	}
	*e = append(*e, EnvironmentSpec{
		Name:  strings.TrimSpace(parts[0]),
		Value: parts[1],
	})
	return nil
}

// String implements the String() function of pflags.Value interface.
func (e *EnvironmentList) String() string {
	return strings.Join(e.Strings(), ",")
}

// Type implements the Type() function of pflags.Value interface.
func (e *EnvironmentList) Type() string {
	return "string"
}

// Append implements pflag.SliceValue.
func (e *EnvironmentList) Append(value string) error {
	return e.Set(value)
}

// Replace implements pflag.SliceValue.
func (e *EnvironmentList) Replace(values []string) error {
	list := EnvironmentList{}
	for _, v := range values {
		if err := list.Set(v); err != nil {
			return err
		}
	}
	*e = list
	return nil
}

// GetSlice implements pflag.SliceValue.
func (e *EnvironmentList) GetSlice() []string {
	return e.Strings()
}

// Strings returns the list as NAME=VALUE entries.
func (e EnvironmentList) Strings() []string {
	result := make([]string, 0, len(e))
	for _, env := range e {
		result = append(result, env.Name+"="+env.Value)
	}
	return result
}

// Lookup returns the value of the last entry named name.
func (e EnvironmentList) Lookup(name string) (string, bool) {
	for i := len(e) - 1; i >= 0; i-- {
		if e[i].Name == name {
			return e[i].Value, true
		}
	}
	return "", false
}

// Copy returns an independent copy of the list.
func (e EnvironmentList) Copy() EnvironmentList {
	if e == nil {
		return nil
	}
	c := make(EnvironmentList, len(e))
	copy(c, e)
	return c
}

// DirectiveKind is the kind of a single image build directive.
type DirectiveKind string

const (
	DirectiveFrom    DirectiveKind = "FROM"
	DirectiveWorkdir DirectiveKind = "WORKDIR"
	DirectiveEnv     DirectiveKind = "ENV"
	DirectiveCopy    DirectiveKind = "COPY"
	DirectiveRun     DirectiveKind = "RUN"
	DirectiveExpose  DirectiveKind = "EXPOSE"
	DirectiveLabel   DirectiveKind = "LABEL"
	DirectiveCmd     DirectiveKind = "CMD"
)

// Directive is one ordered instruction of an ImageSpec. Args carries
// positional arguments, Pairs carries ENV and LABEL key/values.
type Directive struct {
	Kind  DirectiveKind
	Args  []string
	Pairs EnvironmentList
}

// ImageSpec is the pure description of the image to build: base reference,
// copy instructions, environment, exposed port and start command.
type ImageSpec struct {
	BaseImage   string
	WorkDir     string
	Directives  []Directive
	ExposedPort int
	Runtime     RuntimeConfig
	Labels      map[string]string
}

// Find returns the directives of the given kind, in order.
func (s *ImageSpec) Find(kind DirectiveKind) []Directive {
	var result []Directive
	for _, d := range s.Directives {
		if d.Kind == kind {
			result = append(result, d)
		}
	}
	return result
}

// RuntimeConfig is the immutable configuration handed to the launch step. It
// is resolved once at startup instead of being read from the process
// environment.
type RuntimeConfig struct {
	ServerCommand string
	AppTarget     string
	Host          string
	Port          int
	Reload        bool
	WorkDir       string
	ImportPath    []string
	Environment   EnvironmentList
}

// Args returns the full start command.
func (r RuntimeConfig) Args() []string {
	args := []string{r.ServerCommand, r.AppTarget, "--host", r.Host, "--port", strconv.Itoa(r.Port)}
	if r.Reload {
		args = append(args, "--reload")
	}
	return args
}

// Address returns the host:port the server binds.
func (r RuntimeConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Module returns the module part of AppTarget.
func (r RuntimeConfig) Module() string {
	module, _, _ := strings.Cut(r.AppTarget, ":")
	return module
}

// Attribute returns the attribute part of AppTarget.
func (r RuntimeConfig) Attribute() string {
	_, attr, _ := strings.Cut(r.AppTarget, ":")
	return attr
}

// BuildState is the terminal state of a build.
type BuildState string

const (
	BuildSucceeded BuildState = "BUILD_SUCCEEDED"
	BuildFailed    BuildState = "BUILD_FAILED"
)

// RunState is the state of a launched unit.
type RunState string

const (
	RunStarting RunState = "STARTING"
	RunServing  RunState = "SERVING"
	RunStopped  RunState = "STOPPED"
)

// Result structure contains information from a build.
type Result struct {
	// Success describes whether the build was successful.
	Success bool

	// State is the terminal build state.
	State BuildState

	// Messages is a list of messages from build.
	Messages []string

	// ImageID describes resulting image ID.
	ImageID string

	// Tag is the name of the resulting image. Empty on failure.
	Tag string

	// BuildDir describes the build context directory used for the build.
	BuildDir string

	// Dockerfile is the rendered Dockerfile content.
	Dockerfile string

	// BuildInfo holds information about the result of a build.
	BuildInfo BuildInfo
}

// BuildInfo contains information about the build process.
type BuildInfo struct {
	// Stages contains details about each build stage.
	Stages []StageInfo

	// FailureReason is a camel case reason that is used by the machine to
	// report the failure of the build.
	FailureReason FailureReason
}

// StageInfo contains details about a build stage.
type StageInfo struct {
	StageName StageName
	StartTime time.Time
	Duration  time.Duration
	Steps     []StepInfo
}

// StageName is the identifier for each build stage.
type StageName string

// Valid StageNames
const (
	StagePullImages       StageName = "PullImages"
	StagePrepareSource    StageName = "PrepareSource"
	StageCreateDockerfile StageName = "CreateDockerfile"
	StageBuild            StageName = "BuildImage"
)

// StepInfo contains details about a build step.
type StepInfo struct {
	StepName  StepName
	StartTime time.Time
	Duration  time.Duration
}

// StepName is the identifier for each build step.
type StepName string

// Valid StepNames
const (
	StepPullBaseImage    StepName = "PullBaseImage"
	StepFetchSource      StepName = "FetchSource"
	StepCopySource       StepName = "CopySource"
	StepRenderDockerfile StepName = "RenderDockerfile"
	StepTarContext       StepName = "TarBuildContext"
	StepBuildImage       StepName = "BuildImage"
)

// StepFailureReason holds the type of failure that occurred during the build
// process.
type StepFailureReason string

// StepFailureMessage holds the detailed message of a failure.
type StepFailureMessage string

// FailureReason holds the type of failure that occurred during the build
// process.
type FailureReason struct {
	Reason  StepFailureReason
	Message StepFailureMessage
}

// SourceInfo stores information about the source code.
type SourceInfo struct {
	// Ref represents a commit SHA-1, valid Git branch name or a Git tag.
	Ref string

	// CommitID represents an arbitrary extended object reference in Git as SHA-1.
	CommitID string

	// Date contains a date when the committer created the commit.
	Date string

	// AuthorName contains the name of the author.
	AuthorName string

	// AuthorEmail contains the e-mail of the author.
	AuthorEmail string

	// Message represents the first 80 characters from the commit message.
	Message string

	// Location contains a valid URL to the original repository.
	Location string

	// ContextDir contains path inside the Location directory that
	// contains the application source code.
	ContextDir string
}
