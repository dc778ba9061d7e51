package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	cliconfig "github.com/docker/cli/cli/config"
	"github.com/docker/docker/api/types"
	"github.com/docker/go-connections/nat"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/docker/test"
	memoserr "github.com/memtensor/memos-bootstrap/pkg/errors"
)

const baseImage = "registry.cn-shanghai.aliyuncs.com/memtensor/memos:base-v1.0"

func getDocker(client Client) *engineDocker {
	return &engineDocker{
		client: client,
		output: io.Discard,
	}
}

func TestContainerName(t *testing.T) {
	got := containerName("sub.domain.com:5000/repo:tag@sha256:ffffff")
	want := regexp.MustCompile(`^memos_sub.domain.com_5000_repo_tag_sha256_ffffff_[0-9a-f]{8}$`)
	if !want.MatchString(got) {
		t.Errorf("got %v, want match for %v", got, want)
	}
}

func TestCheckReachable(t *testing.T) {
	fake := test.NewFakeDockerClient()
	if err := getDocker(fake).CheckReachable(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	fake.PingErr = errors.New("connection refused")
	err := getDocker(fake).CheckReachable(context.Background())
	if !memoserr.Is(err, memoserr.DockerConnectionError) {
		t.Errorf("Expected DockerConnectionError, got %v", err)
	}
}

func TestIsImageInLocalRegistry(t *testing.T) {
	tests := map[string]struct {
		imageName      string
		exists         bool
		inspectErr     error
		expectedResult bool
		expectedError  string
	}{
		"ImageFound":    {"a_test_image", true, nil, true, ""},
		"ImageNotFound": {"a_test_image:sometag", false, nil, false, ""},
		"InspectError":  {"a_test_image", false, errors.New("boom"), false, "unable to get metadata for a_test_image:latest"},
	}

	for name, def := range tests {
		fake := test.NewFakeDockerClient()
		fake.InspectErr = def.inspectErr
		if def.exists {
			fake.Images["a_test_image:latest"] = types.ImageInspect{ID: "a_test_image"}
		}
		result, err := getDocker(fake).IsImageInLocalRegistry(context.Background(), def.imageName)
		if result != def.expectedResult {
			t.Errorf("Test - %s: Expected result: %v. Got: %v", name, def.expectedResult, result)
		}
		if len(def.expectedError) > 0 && (err == nil || err.Error() != def.expectedError) {
			t.Errorf("Test - %s: Expected error %q, got %v", name, def.expectedError, err)
		}
		if len(def.expectedError) == 0 && err != nil {
			t.Errorf("Test - %s: Unexpected error %v", name, err)
		}
	}
}

func TestCheckAndPullImage(t *testing.T) {
	tests := map[string]struct {
		policy    api.PullPolicy
		local     bool
		pullable  bool
		pullErr   error
		calls     []string
		expectErr bool
	}{
		"IfNotPresent local": {
			policy: api.PullIfNotPresent,
			local:  true,
			calls:  []string{"inspect_image", "inspect_image"},
		},
		"IfNotPresent remote": {
			policy:   api.PullIfNotPresent,
			pullable: true,
			calls:    []string{"inspect_image", "pull", "inspect_image"},
		},
		"IfNotPresent unresolved": {
			policy:    api.PullIfNotPresent,
			pullErr:   errors.New("manifest unknown"),
			calls:     []string{"inspect_image", "pull"},
			expectErr: true,
		},
		"Always": {
			policy:   api.PullAlways,
			local:    true,
			pullable: true,
			calls:    []string{"pull", "inspect_image"},
		},
		"Never missing": {
			policy:    api.PullNever,
			calls:     []string{"inspect_image"},
			expectErr: true,
		},
		"Never local": {
			policy: api.PullNever,
			local:  true,
			calls:  []string{"inspect_image"},
		},
	}

	for name, def := range tests {
		fake := test.NewFakeDockerClient()
		fake.PullFail = def.pullErr
		if def.local {
			fake.Images[baseImage] = types.ImageInspect{ID: "sha256:base"}
		}
		if def.pullable {
			fake.Pullable[baseImage] = types.ImageInspect{ID: "sha256:base"}
		}

		image, err := getDocker(fake).CheckAndPullImage(context.Background(), baseImage, def.policy)
		if !reflect.DeepEqual(fake.CallList(), def.calls) {
			t.Errorf("%s: Expected calls %v, got %v", name, def.calls, fake.CallList())
		}
		if def.expectErr {
			if !memoserr.Is(err, memoserr.BaseImageUnresolvedError) {
				t.Errorf("%s: Expected BaseImageUnresolved, got %v", name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: Unexpected error %v", name, err)
			continue
		}
		if image.ID != "sha256:base" {
			t.Errorf("%s: Unexpected image %+v", name, image)
		}
	}
}

func TestPullImageAuth(t *testing.T) {
	fake := test.NewFakeDockerClient()
	fake.Pullable[baseImage] = types.ImageInspect{ID: "sha256:base"}
	d := getDocker(fake)
	d.pullAuth = api.AuthConfig{Username: "user", Password: "secret"}

	if _, err := d.PullImage(context.Background(), baseImage); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(fake.PullOptions.RegistryAuth) == 0 {
		t.Errorf("Expected registry credentials to be sent")
	}
}

func TestBuildImage(t *testing.T) {
	fake := test.NewFakeDockerClient()
	var out bytes.Buffer
	id, err := getDocker(fake).BuildImage(context.Background(), BuildImageOptions{
		Name:    "memos:latest",
		Context: strings.NewReader("context"),
		Stdout:  &out,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "sha256:1234" {
		t.Errorf("Expected image id sha256:1234, got %q", id)
	}
	if !reflect.DeepEqual(fake.BuildImageOpts.Tags, []string{"memos:latest"}) {
		t.Errorf("Unexpected tags %v", fake.BuildImageOpts.Tags)
	}
	if fake.BuildImageOpts.Dockerfile != "Dockerfile" {
		t.Errorf("Expected default Dockerfile, got %q", fake.BuildImageOpts.Dockerfile)
	}
	if string(fake.BuildContext) != "context" {
		t.Errorf("Expected the build context to be sent, got %q", fake.BuildContext)
	}
	if !strings.Contains(out.String(), "Step 1/7") {
		t.Errorf("Expected build output, got %q", out.String())
	}
}

func TestBuildImageError(t *testing.T) {
	tests := map[string]*test.FakeDockerClient{
		"request": func() *test.FakeDockerClient {
			f := test.NewFakeDockerClient()
			f.BuildImageErr = errors.New("daemon gone")
			return f
		}(),
		"stream": func() *test.FakeDockerClient {
			f := test.NewFakeDockerClient()
			f.BuildImageOutput = `{"errorDetail":{"message":"COPY failed"},"error":"COPY failed"}` + "\n"
			return f
		}(),
	}
	for name, fake := range tests {
		_, err := getDocker(fake).BuildImage(context.Background(), BuildImageOptions{Name: "memos:latest"})
		if !memoserr.Is(err, memoserr.BuildImageError) {
			t.Errorf("%s: Expected BuildImageError, got %v", name, err)
		}
	}
}

func TestRunContainer(t *testing.T) {
	fake := test.NewFakeDockerClient()
	id, err := getDocker(fake).RunContainer(context.Background(), RunContainerOptions{
		Image:    "memos",
		Name:     "memos_test",
		Env:      []string{"HF_ENDPOINT=https://hf-mirror.com"},
		Cmd:      []string{"uvicorn", "memos.api.server_api:app", "--port", "8005"},
		Port:     8005,
		HostPort: 18005,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "memos_test" {
		t.Errorf("Unexpected container id %q", id)
	}

	config := fake.Containers["memos_test"]
	if config.Image != "memos:latest" {
		t.Errorf("Expected image memos:latest, got %q", config.Image)
	}
	if !reflect.DeepEqual(config.Env, []string{"HF_ENDPOINT=https://hf-mirror.com"}) {
		t.Errorf("Unexpected env %v", config.Env)
	}
	if len(config.Cmd) != 4 || config.Cmd[0] != "uvicorn" || config.Cmd[3] != "8005" {
		t.Errorf("Unexpected command %v", config.Cmd)
	}
	if _, ok := config.ExposedPorts[nat.Port("8005/tcp")]; !ok {
		t.Errorf("Expected 8005/tcp to be exposed, got %v", config.ExposedPorts)
	}
	bindings := fake.HostConfig["memos_test"].PortBindings[nat.Port("8005/tcp")]
	if len(bindings) != 1 || bindings[0].HostPort != "18005" {
		t.Errorf("Expected 8005/tcp published on 18005, got %v", bindings)
	}
	if !reflect.DeepEqual(fake.CallList(), []string{"create", "start"}) {
		t.Errorf("Unexpected calls %v", fake.CallList())
	}
}

func TestRunContainerPortConflict(t *testing.T) {
	fake := test.NewFakeDockerClient()
	fake.StartErr = errors.New("driver failed programming external connectivity: Bind for 0.0.0.0:8005 failed: port is already allocated")
	_, err := getDocker(fake).RunContainer(context.Background(), RunContainerOptions{Image: "memos", Name: "memos_test", Port: 8005})
	if !memoserr.Is(err, memoserr.PortBindConflictError) {
		t.Fatalf("Expected PortBindConflict, got %v", err)
	}
	if _, exists := fake.Containers["memos_test"]; exists {
		t.Errorf("Expected the created container to be removed")
	}
}

func TestWaitAndStopContainer(t *testing.T) {
	fake := test.NewFakeDockerClient()
	d := getDocker(fake)
	done := make(chan int)
	go func() {
		code, _ := d.WaitContainer(context.Background(), "memos_test")
		done <- code
	}()
	if err := d.StopContainer(context.Background(), "memos_test", 3*time.Second); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if code := <-done; code != 0 {
		t.Errorf("Expected exit code 0, got %d", code)
	}
	if fake.StopOptions.Timeout == nil || *fake.StopOptions.Timeout != 3 {
		t.Errorf("Expected a 3 second stop timeout, got %v", fake.StopOptions.Timeout)
	}
}

func TestContainerLogs(t *testing.T) {
	fake := test.NewFakeDockerClient()
	fake.LogsStdout = "INFO:     Uvicorn running on http://0.0.0.0:8005\n"
	fake.LogsStderr = "ModuleNotFoundError: No module named 'memos'\n"
	var stdout, stderr bytes.Buffer
	if err := getDocker(fake).ContainerLogs(context.Background(), "memos_test", false, &stdout, &stderr); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stdout.String() != fake.LogsStdout {
		t.Errorf("Unexpected stdout %q", stdout.String())
	}
	if stderr.String() != fake.LogsStderr {
		t.Errorf("Unexpected stderr %q", stderr.String())
	}
}

func TestGetImageName(t *testing.T) {
	type runtest struct {
		name     string
		expected string
	}
	tests := []runtest{
		{"test/image", "test/image:latest"},
		{"test/image:latest", "test/image:latest"},
		{"test/image:tag", "test/image:tag"},
		{"repository/test/image", "repository/test/image:latest"},
		{"repository/test/image:latest", "repository/test/image:latest"},
		{"repository/test/image:tag", "repository/test/image:tag"},
		{baseImage, baseImage},
	}

	for _, tc := range tests {
		if e, a := tc.expected, getImageName(tc.name); e != a {
			t.Errorf("Expected image name %s, but got %s!", e, a)
		}
	}
}

func TestGetDefaultDockerConfig(t *testing.T) {
	tests := []struct {
		envHost           string
		envCertPath       string
		envTLSVerify      string
		envTLS            string
		expectedHost      string
		expectedCertFile  string
		expectedTLSVerify bool
		expectedTLS       bool
	}{
		{
			envHost:      "tcp://docker:2376",
			envCertPath:  "/expected/cert/path",
			envTLSVerify: "true",
			envTLS:       "true",

			expectedHost:      "tcp://docker:2376",
			expectedCertFile:  "/expected/cert/path/cert.pem",
			expectedTLSVerify: true,
			expectedTLS:       true,
		},
		{
			envHost:      "",
			envCertPath:  "/certs",
			envTLSVerify: "",
			envTLS:       "",

			expectedHost:      "unix:///var/run/docker.sock",
			expectedCertFile:  "/certs/cert.pem",
			expectedTLSVerify: false,
			expectedTLS:       false,
		},
	}
	for _, tc := range tests {
		t.Setenv("DOCKER_HOST", tc.envHost)
		t.Setenv("DOCKER_CERT_PATH", tc.envCertPath)
		t.Setenv("DOCKER_TLS_VERIFY", tc.envTLSVerify)
		t.Setenv("DOCKER_TLS", tc.envTLS)

		cfg := GetDefaultDockerConfig()
		if tc.expectedHost != cfg.Endpoint {
			t.Errorf("Endpoint: expected '%s', but got '%s'", tc.expectedHost, cfg.Endpoint)
		}
		if tc.expectedCertFile != cfg.CertFile {
			t.Errorf("CertFile: expected '%s', but got '%s'", tc.expectedCertFile, cfg.CertFile)
		}
		if tc.expectedTLSVerify != cfg.TLSVerify {
			t.Errorf("TLSVerify: expected '%t', but got '%t'", tc.expectedTLSVerify, cfg.TLSVerify)
		}
		if tc.expectedTLS != cfg.UseTLS {
			t.Errorf("UseTLS: expected '%t', but got '%t'", tc.expectedTLS, cfg.UseTLS)
		}
	}
}

func TestLoadImageRegistryAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
	"auths": {
		"registry.cn-shanghai.aliyuncs.com": {"auth": "dXNlcjpzZWNyZXQ="},
		"https://index.docker.io/v1/": {"username": "hub", "password": "hubpass"}
	}
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		image    string
		username string
		password string
	}{
		{baseImage, "user", "secret"},
		{"python:3.11", "hub", "hubpass"},
		{"quay.io/memtensor/memos", "", ""},
	}
	for _, tc := range tests {
		auth := LoadImageRegistryAuth(path, tc.image)
		if auth.Username != tc.username || auth.Password != tc.password {
			t.Errorf("%s: expected %s/%s, got %s/%s", tc.image, tc.username, tc.password, auth.Username, auth.Password)
		}
	}

	if auth := LoadImageRegistryAuth(filepath.Join(t.TempDir(), "missing.json"), baseImage); auth != (api.AuthConfig{}) {
		t.Errorf("Expected empty credentials for a missing file, got %+v", auth)
	}

	broken := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(broken, []byte(`{"auths": {"docker.io": {"auth": "not-base64"}}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if auth := LoadImageRegistryAuth(broken, "python:3.11"); auth != (api.AuthConfig{}) {
		t.Errorf("Expected empty credentials for an undecodable auth entry, got %+v", auth)
	}
}

func TestDefaultConfigPathFollowsConfigDir(t *testing.T) {
	dir := t.TempDir()
	prev := cliconfig.Dir()
	cliconfig.SetDir(dir)
	defer cliconfig.SetDir(prev)
	if got, want := DefaultConfigPath(), filepath.Join(dir, ConfigFileName); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
