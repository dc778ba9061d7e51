package scripts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
	"github.com/memtensor/memos-bootstrap/pkg/util"
	"github.com/memtensor/memos-bootstrap/pkg/util/fs"
	utillog "github.com/memtensor/memos-bootstrap/pkg/util/log"
)

var log = utillog.StderrLog

// EnvironmentFile is the project-level environment file, relative to the
// project root.
var EnvironmentFile = filepath.Join(constants.SourceConfig, "environment")

// GetEnvironment reads the .memos/environment file located in the project and
// parses it into an EnvironmentList. A missing file yields an empty list.
func GetEnvironment(fileSystem fs.FileSystem, projectDir string) (api.EnvironmentList, error) {
	envPath := filepath.Join(projectDir, EnvironmentFile)
	if !fileSystem.Exists(envPath) {
		return nil, nil
	}
	env, err := util.EnvironmentFromFile(envPath)
	if err != nil {
		return nil, err
	}
	for _, e := range env {
		log.V(1).Infof("Setting %q from %s", e.Name, EnvironmentFile)
	}
	return env, nil
}

// ConvertEnvironmentList converts the EnvironmentList to "key=val" strings.
func ConvertEnvironmentList(env api.EnvironmentList) (result []string) {
	for _, e := range env {
		result = append(result, fmt.Sprintf("%s=%s", e.Name, e.Value))
	}
	return
}

var dockerEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)

// ConvertEnvironmentToDocker converts the EnvironmentList into Dockerfile
// format. Values are quoted; backslashes, quotes and dollar signs are escaped
// so no variable expansion happens at build time.
func ConvertEnvironmentToDocker(env api.EnvironmentList) string {
	return convertPairs("ENV", env)
}

// ConvertLabelsToDocker converts sorted label pairs into a LABEL instruction.
func ConvertLabelsToDocker(labels api.EnvironmentList) string {
	return convertPairs("LABEL", labels)
}

func convertPairs(instruction string, pairs api.EnvironmentList) (result string) {
	for i, e := range pairs {
		if i == 0 {
			result += fmt.Sprintf("%s %s=\"%s\"", instruction, e.Name, dockerEscaper.Replace(e.Value))
		} else {
			result += fmt.Sprintf(" \\\n    %s=\"%s\"", e.Name, dockerEscaper.Replace(e.Value))
		}
	}
	result += "\n"
	return
}
