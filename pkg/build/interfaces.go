package build

import (
	"context"

	"github.com/memtensor/memos-bootstrap/pkg/api"
)

// Builder is the interface that provides basic methods all implementation
// should have.
// Build method executes the build based on Config and returns the Result.
type Builder interface {
	Build(context.Context, *api.Config) (*api.Result, error)
}

// Preparer provides the Prepare method for builders that need to prepare the
// build context before it gets passed to the build.
type Preparer interface {
	Prepare(context.Context, *api.Config) error
}

// Cleaner provides the Cleanup method for builders that need to cleanup
// temporary directories after build execution finish.
type Cleaner interface {
	Cleanup(*api.Config)
}

// Runner starts the unit described by a Config and blocks until it stops.
type Runner interface {
	Run(context.Context, *api.Config) error
}
