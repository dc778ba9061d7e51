package strategies

import (
	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/build"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/dockerfile"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/external"
	"github.com/memtensor/memos-bootstrap/pkg/build/strategies/layered"
	"github.com/memtensor/memos-bootstrap/pkg/docker"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// Strategy names.
const (
	Layered    = "layered"
	External   = "external"
	Dockerfile = "dockerfile"
)

// GetStrategy decides what build strategy will be used for the build.
// --as-dockerfile only writes the Dockerfile, --with-builder shells out to an
// external builder, otherwise the image is built through the engine API.
func GetStrategy(d docker.Docker, config *api.Config) (build.Builder, string, error) {
	fileSystem := fs.NewFileSystem()

	switch {
	case len(config.AsDockerfile) > 0 && len(config.WithBuilder) == 0:
		log.V(4).Infof("Using %s strategy", Dockerfile)
		b, err := dockerfile.New(config, fileSystem)
		return b, Dockerfile, err
	case len(config.WithBuilder) > 0:
		log.V(4).Infof("Using %s strategy with %s", External, config.WithBuilder)
		b, err := external.New(config, fileSystem)
		return b, External, err
	}
	log.V(4).Infof("Using %s strategy", Layered)
	b, err := layered.New(d, config, fileSystem)
	return b, Layered, err
}
