package interfaces

import (
	"context"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// TriggerUseCase defines the intake of release triggers
type TriggerUseCase interface {
	// Dispatch validates the trigger input, records a new pipeline run
	// and hands it to the configured execution path. No stage runs
	// before validation has passed.
	Dispatch(ctx context.Context, input *model.TriggerInput) (*model.PipelineRun, error)
}

// PipelineUseCase defines execution of recorded pipeline runs
type PipelineUseCase interface {
	// Execute runs every stage declared in the manifest for the given run
	Execute(ctx context.Context, id types.RunID) (*model.PipelineRun, error)

	// SetManifest replaces the pipeline definition for subsequent runs
	SetManifest(m *model.Manifest)
}

// AnnounceUseCase drafts release announcement copy for notifications
type AnnounceUseCase interface {
	Draft(ctx context.Context, report *model.RunReport) (*model.Announcement, error)
}
