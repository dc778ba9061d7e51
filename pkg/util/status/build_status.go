package status

import (
	"github.com/memtensor/memos-bootstrap/pkg/api"
	"github.com/memtensor/memos-bootstrap/pkg/errors"
)

const (
	// ReasonBaseImageUnresolved is the reason associated with a base image
	// reference that cannot be inspected or pulled.
	ReasonBaseImageUnresolved        api.StepFailureReason  = "BaseImageUnresolved"
	ReasonMessageBaseImageUnresolved api.StepFailureMessage = "Failed to resolve base image"

	// ReasonSourceCopyFailed is the reason associated with a missing or
	// unreadable local source tree.
	ReasonSourceCopyFailed        api.StepFailureReason  = "SourceCopyFailed"
	ReasonMessageSourceCopyFailed api.StepFailureMessage = "Failed to copy source into the build context"

	// ReasonFetchSourceFailed is the reason associated with failing to download
	// the source of the build.
	ReasonFetchSourceFailed        api.StepFailureReason  = "FetchSourceFailed"
	ReasonMessageFetchSourceFailed api.StepFailureMessage = "Failed to fetch source for build"

	// ReasonDockerfileCreateFailed is the reason associated with failing to create a
	// Dockerfile for a build.
	ReasonDockerfileCreateFailed        api.StepFailureReason  = "DockerFileCreationFailed"
	ReasonMessageDockerfileCreateFailed api.StepFailureMessage = "Failed to create Dockerfile"

	// ReasonTarSourceFailed is the failure reason associated with a failure to
	// tar the build context.
	ReasonTarSourceFailed        api.StepFailureReason  = "TarSourceFailed"
	ReasonMessageTarSourceFailed api.StepFailureMessage = "Failed to tar source files"

	// ReasonDockerImageBuildFailed is the reasons associated with a failed
	// Docker image build.
	ReasonDockerImageBuildFailed        api.StepFailureReason  = "DockerImageBuildFailed"
	ReasonMessageDockerImageBuildFailed api.StepFailureMessage = "Docker image build failed"

	// ReasonFSOperationFailed is the reason associated with a failed fs
	// operation. Create, remove directory, copy file, etc.
	ReasonFSOperationFailed        api.StepFailureReason  = "FileSystemOperationFailed"
	ReasonMessageFSOperationFailed api.StepFailureMessage = "Failed to perform filesystem operation"

	// ReasonInvalidConfig is the reason associated with a configuration that
	// did not pass validation.
	ReasonInvalidConfig        api.StepFailureReason  = "InvalidConfiguration"
	ReasonMessageInvalidConfig api.StepFailureMessage = "Invalid build configuration"

	// ReasonGenericBuildFailed is the reason associated with a broad range of
	// failure.
	ReasonGenericBuildFailed        api.StepFailureReason  = "GenericBuildFailed"
	ReasonMessageGenericBuildFailed api.StepFailureMessage = "Generic build failure - check logs for details"
)

// NewFailureReason initializes a new failure reason that contains both the
// reason and a message to be displayed
func NewFailureReason(reason api.StepFailureReason, message api.StepFailureMessage) api.FailureReason {
	return api.FailureReason{
		Reason:  reason,
		Message: message,
	}
}

// FailureReasonFor maps a bootstrap error onto its failure reason.
func FailureReasonFor(err error) api.FailureReason {
	switch errors.Code(err) {
	case errors.BaseImageUnresolvedError, errors.PullImageError, errors.InspectImageError:
		return NewFailureReason(ReasonBaseImageUnresolved, ReasonMessageBaseImageUnresolved)
	case errors.SourceCopyFailedError:
		return NewFailureReason(ReasonSourceCopyFailed, ReasonMessageSourceCopyFailed)
	case errors.EmptyGitRepositoryError:
		return NewFailureReason(ReasonFetchSourceFailed, ReasonMessageFetchSourceFailed)
	case errors.DockerfileCreateError:
		return NewFailureReason(ReasonDockerfileCreateFailed, ReasonMessageDockerfileCreateFailed)
	case errors.BuildImageError:
		return NewFailureReason(ReasonDockerImageBuildFailed, ReasonMessageDockerImageBuildFailed)
	case errors.InvalidConfigError:
		return NewFailureReason(ReasonInvalidConfig, ReasonMessageInvalidConfig)
	}
	return NewFailureReason(ReasonGenericBuildFailed, ReasonMessageGenericBuildFailed)
}
