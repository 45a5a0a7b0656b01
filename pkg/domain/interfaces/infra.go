package interfaces

import (
	"context"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// CredentialSource acquires registry credentials, typically through
// federated identity token exchange
type CredentialSource interface {
	Credential(ctx context.Context) (*model.RegistryCredential, error)
}

// ImageBuilder builds a container image for the requested platforms and
// pushes it tagged with the commit SHA of the request
type ImageBuilder interface {
	BuildAndPush(ctx context.Context, cred *model.RegistryCredential, req *model.ReleaseRequest) (*model.BuildResult, error)
}

// GitClient derives repository context and manages release tags
type GitClient interface {
	// Context resolves repository slug, commit SHA and branch for a run
	Context(ctx context.Context) (*model.GitContext, error)

	// PushTag creates an annotated tag on the given commit and pushes it
	// to the configured remote
	PushTag(ctx context.Context, name, commitSHA, message string) error
}

// Notifier delivers a run report to a messaging channel
type Notifier interface {
	Notify(ctx context.Context, report *model.RunReport) error
}

// PackagePublisher publishes release packages to an external package registry
type PackagePublisher interface {
	Publish(ctx context.Context, req *model.ReleaseRequest) error
}

// RunLedger persists pipeline runs
type RunLedger interface {
	// Put creates or replaces a run record
	Put(ctx context.Context, run *model.PipelineRun) error

	// Get returns a run by ID, or types.ErrRunNotFound
	Get(ctx context.Context, id types.RunID) (*model.PipelineRun, error)

	// List returns runs ordered by creation time, newest first
	List(ctx context.Context, limit int) ([]*model.PipelineRun, error)

	Close() error
}

// ReportArchive stores finished run reports and returns their location
type ReportArchive interface {
	Save(ctx context.Context, report *model.RunReport) (string, error)
}

// QueuePublisher hands a recorded run to a remote executor
type QueuePublisher interface {
	Publish(ctx context.Context, run *model.PipelineRun) error
	Close() error
}
