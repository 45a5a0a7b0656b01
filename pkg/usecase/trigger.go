package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/utils/async"
	"github.com/m-mizutani/catapult/pkg/utils/metrics"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

type triggerUseCase struct {
	git      interfaces.GitClient
	ledger   interfaces.RunLedger
	pipeline interfaces.PipelineUseCase
	queue    interfaces.QueuePublisher
	recorder metrics.Recorder
	inline   bool
}

type TriggerOption func(*triggerUseCase)

// WithQueue hands accepted runs to a queue instead of executing them in
// this process
func WithQueue(queue interfaces.QueuePublisher) TriggerOption {
	return func(uc *triggerUseCase) {
		uc.queue = queue
	}
}

// WithInline makes Dispatch execute the pipeline before returning,
// instead of running it in the background. Used by the run command and
// by tests.
func WithInline() TriggerOption {
	return func(uc *triggerUseCase) {
		uc.inline = true
	}
}

// WithTriggerRecorder sets the metrics recorder for accepted triggers
func WithTriggerRecorder(recorder metrics.Recorder) TriggerOption {
	return func(uc *triggerUseCase) {
		uc.recorder = recorder
	}
}

// NewTrigger creates the trigger intake. It validates raw trigger input,
// records the run, and hands it to the pipeline (or the queue).
func NewTrigger(git interfaces.GitClient, ledger interfaces.RunLedger, pipeline interfaces.PipelineUseCase, options ...TriggerOption) interfaces.TriggerUseCase {
	uc := &triggerUseCase{
		git:      git,
		ledger:   ledger,
		pipeline: pipeline,
		recorder: metrics.Nop(),
	}
	for _, opt := range options {
		opt(uc)
	}
	return uc
}

// Dispatch validates the trigger input and starts a pipeline run for it.
// Defaults are applied before validation: an empty version becomes
// DefaultVersion and an empty container_arch becomes linux/amd64. No
// stage executes when validation fails.
func (uc *triggerUseCase) Dispatch(ctx context.Context, input *model.TriggerInput) (*model.PipelineRun, error) {
	logger := ctxlog.From(ctx)

	version := input.Version
	if version == "" {
		version = model.DefaultVersion
	}
	arch := input.ContainerArch
	if arch == "" {
		arch = model.PlatformAMD64
	}

	platforms, err := model.ParsePlatforms(arch)
	if err != nil {
		return nil, err
	}

	gitCtx, err := uc.git.Context(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve repository context")
	}

	req := model.ReleaseRequest{
		Version:     version,
		Platforms:   platforms,
		Repository:  gitCtx.Repository,
		CommitSHA:   gitCtx.CommitSHA,
		Branch:      gitCtx.Branch,
		RequestedBy: input.RequestedBy,
		RequestedAt: time.Now().UTC(),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run := model.NewPipelineRun(req, input.Kind)
	if err := uc.ledger.Put(ctx, run); err != nil {
		return nil, goerr.Wrap(err, "failed to record run", goerr.V("run_id", run.ID))
	}
	uc.recorder.RecordTrigger(run.Trigger)

	logger.Info("Accepted release trigger",
		"run_id", run.ID,
		"trigger", run.Trigger,
		"version", req.Version,
		"platforms", req.Platforms.String(),
		"repository", req.Repository,
		"commit_sha", req.CommitSHA,
		"requested_by", req.RequestedBy,
	)

	switch {
	case uc.queue != nil:
		if err := uc.queue.Publish(ctx, run); err != nil {
			return nil, goerr.Wrap(err, "failed to enqueue run", goerr.V("run_id", run.ID))
		}
		return run, nil

	case uc.inline:
		return uc.pipeline.Execute(ctx, run.ID)

	default:
		async.Dispatch(ctx, func(ctx context.Context) error {
			_, err := uc.pipeline.Execute(ctx, run.ID)
			return err
		})
		return run, nil
	}
}
