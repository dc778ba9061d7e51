package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/api/constants"
)

const (
	// MetadataFilename is the name of the config file defining additional labels to set on the output image.
	MetadataFilename = "image_metadata.json"
)

// GenerateOutputImageLabels generate the labels based on the Config, the
// source repository information and the project's image_metadata.json.
// projectDir is the local project root; it may be empty.
func GenerateOutputImageLabels(info *api.SourceInfo, config *api.Config, projectDir string) map[string]string {
	labels := map[string]string{}
	namespace := constants.DefaultNamespace

	labels = GenerateLabelsFromConfig(labels, config, namespace)
	labels = GenerateLabelsFromSourceInfo(labels, info, namespace)

	if len(projectDir) > 0 {
		if data, err := ProcessImageMetadataFile(filepath.Join(projectDir, constants.SourceConfig)); err == nil {
			for k, v := range metadataLabels(data) {
				labels[k] = v
			}
		}
	}

	for k, v := range config.Labels {
		labels[k] = v
	}
	labels[constants.BuildIDLabel] = uuid.NewString()
	return labels
}

// GenerateLabelsFromConfig generate the labels based on the build Config
func GenerateLabelsFromConfig(labels map[string]string, config *api.Config, namespace string) map[string]string {
	if len(config.Description) > 0 {
		labels[constants.KubernetesDescriptionLabel] = config.Description
	}

	if len(config.DisplayName) > 0 {
		labels[constants.KubernetesDisplayNameLabel] = config.DisplayName
	} else if len(config.Tag) > 0 {
		labels[constants.KubernetesDisplayNameLabel] = config.Tag
	}

	if config.Port > 0 {
		labels[constants.ExposeServicesLabel] = strconv.Itoa(config.Port) + ":http"
	}

	addBuildLabel(labels, "image", config.BaseImage, namespace)
	addBuildLabel(labels, "app", config.AppTarget, namespace)
	return labels
}

// GenerateLabelsFromSourceInfo generate the labels based on the source repository
// informations.
func GenerateLabelsFromSourceInfo(labels map[string]string, info *api.SourceInfo, namespace string) map[string]string {
	if info == nil {
		log.V(3).Info("Unable to fetch source information, the output image labels will not be set")
		return labels
	}

	if len(info.AuthorName) > 0 {
		author := fmt.Sprintf("%s <%s>", info.AuthorName, info.AuthorEmail)
		addBuildLabel(labels, "commit.author", author, namespace)
	}

	addBuildLabel(labels, "commit.date", info.Date, namespace)
	addBuildLabel(labels, "commit.id", info.CommitID, namespace)
	addBuildLabel(labels, "commit.ref", info.Ref, namespace)
	addBuildLabel(labels, "commit.message", info.Message, namespace)
	addBuildLabel(labels, "source-location", info.Location, namespace)
	addBuildLabel(labels, "source-context-dir", info.ContextDir, namespace)
	return labels
}

// addBuildLabel adds a new "*.build.*" label into map when the
// value of this label is not empty
func addBuildLabel(to map[string]string, key, value, namespace string) {
	if len(value) == 0 {
		return
	}
	to[namespace+"build."+key] = value
}

// ProcessImageMetadataFile returns the decoded content of the image metadata
// file found in dir.
func ProcessImageMetadataFile(dir string) (map[string]interface{}, error) {
	filePath := filepath.Join(dir, MetadataFilename)
	str, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("unable to read file %q: %v", filePath, err)
	}
	log.V(3).Infof("new Labels File contents : \n%s\n", str)

	var data map[string]interface{}
	if err = json.Unmarshal(str, &data); err != nil {
		return nil, fmt.Errorf("JSON Unmarshal Error with %q file : %v", MetadataFilename, err)
	}
	return data, nil
}

// metadataLabels extracts {"labels": [{"k": "v"}, ...]} entries, skipping
// anything that is not a string.
func metadataLabels(data map[string]interface{}) map[string]string {
	result := map[string]string{}
	ll, ok := data["labels"].([]interface{})
	if !ok {
		return result
	}
	for _, l := range ll {
		m, ok := l.(map[string]interface{})
		if !ok {
			continue
		}
		for k, v := range m {
			if s, ok := v.(string); ok {
				result[k] = s
			}
		}
	}
	return result
}
