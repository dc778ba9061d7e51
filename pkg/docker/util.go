package docker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"
	cliconfig "github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/docker/docker/client"

	"github.com/memtensor/memos-bootstrap/pkg/api"
)

const (
	// defaultRegistry is the key docker uses for Docker Hub credentials.
	defaultRegistry = "https://index.docker.io/v1/"

	// ConfigFileName is the docker client configuration file.
	ConfigFileName = "config.json"
)

// GetDefaultDockerConfig checks relevant Docker environment variables to
// provide defaults for our command line flags.
func GetDefaultDockerConfig() *api.DockerConfig {
	cfg := &api.DockerConfig{}

	if cfg.Endpoint = os.Getenv("DOCKER_HOST"); cfg.Endpoint == "" {
		cfg.Endpoint = client.DefaultDockerHost
	}

	certPath := os.Getenv("DOCKER_CERT_PATH")
	if certPath == "" {
		certPath = cliconfig.Dir()
	}

	cfg.CertFile = filepath.Join(certPath, "cert.pem")
	cfg.KeyFile = filepath.Join(certPath, "key.pem")
	cfg.CAFile = filepath.Join(certPath, "ca.pem")

	if tlsVerify := os.Getenv("DOCKER_TLS_VERIFY"); tlsVerify != "" {
		cfg.TLSVerify = true
	}
	if useTLS := os.Getenv("DOCKER_TLS"); useTLS != "" {
		cfg.UseTLS = true
	}
	return cfg
}

// DefaultConfigPath returns the path of the docker client configuration file.
func DefaultConfigPath() string {
	return filepath.Join(cliconfig.Dir(), ConfigFileName)
}

// LoadImageRegistryAuth returns the credentials stored for the registry of
// image in the docker configuration file at path. A missing file or entry
// yields empty credentials.
func LoadImageRegistryAuth(path, image string) api.AuthConfig {
	r, err := os.Open(path)
	if err != nil {
		log.V(3).Infof("Unable to read docker config %q: %v", path, err)
		return api.AuthConfig{}
	}
	defer r.Close()

	cfg := configfile.New(path)
	if err := cfg.LoadFromReader(r); err != nil {
		log.Warningf("Unable to parse docker config %q: %v", path, err)
		return api.AuthConfig{}
	}

	domain := registryDomain(image)
	for key, entry := range cfg.AuthConfigs {
		if normalizeRegistry(key) != domain {
			continue
		}
		log.V(3).Infof("Using credentials of %q for %q", key, image)
		return api.AuthConfig{
			Username:      entry.Username,
			Password:      entry.Password,
			Email:         entry.Email,
			ServerAddress: key,
		}
	}
	return api.AuthConfig{}
}

func registryDomain(image string) string {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return ""
	}
	return reference.Domain(named)
}

// normalizeRegistry turns a docker config key into a registry domain.
func normalizeRegistry(key string) string {
	if key == defaultRegistry {
		return "docker.io"
	}
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "http://")
	key, _, _ = strings.Cut(key, "/")
	if key == "index.docker.io" || key == "registry-1.docker.io" {
		return "docker.io"
	}
	return key
}

// getImageName checks the image name and adds DefaultTag if none is specified
func getImageName(name string) string {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return name
	}
	return reference.FamiliarString(reference.TagNameOnly(named))
}
