package constants

// Image build defaults of the memos service.
const (
	// DefaultBaseImage is the prebuilt image carrying the python runtime and
	// every dependency of the application.
	DefaultBaseImage = "registry.cn-shanghai.aliyuncs.com/memtensor/memos:base-v1.0"

	// DefaultWorkDir is the working directory inside the image.
	DefaultWorkDir = "/app"

	// DefaultSourceDir is copied from the project into DefaultWorkDir.
	DefaultSourceDir = "src"

	// DefaultMirrorEndpoint redirects model and dataset downloads.
	DefaultMirrorEndpoint = "https://hf-mirror.com"

	// DefaultPort is exposed by the image and bound by the start command.
	DefaultPort = 8005

	// DefaultHost binds all interfaces.
	DefaultHost = "0.0.0.0"

	// DefaultServerCommand is the ASGI server.
	DefaultServerCommand = "uvicorn"

	// DefaultAppTarget is the application object inside the copied tree.
	DefaultAppTarget = "memos.api.server_api:app"

	// DefaultRequirementsFile is used when dependency installation is enabled.
	DefaultRequirementsFile = "requirements.txt"

	// DefaultIgnoreFile lists files excluded from the source copy.
	DefaultIgnoreFile = ".memosignore"

	// DefaultTag names the image when no tag is given.
	DefaultTag = "memos:latest"
)

// Environment variable names.
const (
	// MirrorEndpointEnv is read by the application to pick a download mirror.
	MirrorEndpointEnv = "HF_ENDPOINT"

	// ImportPathEnv is read by the python runtime to resolve modules.
	ImportPathEnv = "PYTHONPATH"
)

const (
	// DefaultNamespace is the default label namespace.
	DefaultNamespace = "io.memtensor."

	// KubernetesDescriptionLabel is the image description label.
	KubernetesDescriptionLabel = "io.k8s.description"

	// KubernetesDisplayNameLabel is the image display name label.
	KubernetesDisplayNameLabel = "io.k8s.display-name"

	// ExposeServicesLabel documents the served port.
	ExposeServicesLabel = "io.openshift.expose-services"

	// BuildIDLabel carries a unique identifier of the build.
	BuildIDLabel = DefaultNamespace + "build.id"
)

// External builders.
const (
	DockerBuilder  = "docker"
	PodmanBuilder  = "podman"
	BuildahBuilder = "buildah"
)

// SourceConfig is the project directory holding bootstrap metadata.
const SourceConfig = ".memos"

// OptionsFile is where --use-config persists the command line options.
const OptionsFile = ".memosfile"
