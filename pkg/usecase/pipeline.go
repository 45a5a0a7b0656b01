package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/utils/metrics"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

type pipelineUseCase struct {
	mutex    sync.RWMutex
	manifest *model.Manifest

	ledger    interfaces.RunLedger
	creds     interfaces.CredentialSource
	builder   interfaces.ImageBuilder
	git       interfaces.GitClient
	notifier  interfaces.Notifier
	publisher interfaces.PackagePublisher
	announcer interfaces.AnnounceUseCase
	archive   interfaces.ReportArchive
	recorder  metrics.Recorder
}

type PipelineOption func(*pipelineUseCase)

// WithManifest sets the initial pipeline manifest
func WithManifest(manifest *model.Manifest) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.manifest = manifest
	}
}

// WithCredentialSource sets the registry credential source for the image stage
func WithCredentialSource(creds interfaces.CredentialSource) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.creds = creds
	}
}

// WithBuilder sets the image builder for the image stage
func WithBuilder(builder interfaces.ImageBuilder) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.builder = builder
	}
}

// WithGitClient sets the git client for the tag stage
func WithGitClient(git interfaces.GitClient) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.git = git
	}
}

// WithNotifier sets the notifier for the notify stage
func WithNotifier(notifier interfaces.Notifier) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.notifier = notifier
	}
}

// WithPublisher sets the package publisher for the publish stage
func WithPublisher(publisher interfaces.PackagePublisher) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.publisher = publisher
	}
}

// WithAnnouncer sets the announcement drafter used by the notify stage
func WithAnnouncer(announcer interfaces.AnnounceUseCase) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.announcer = announcer
	}
}

// WithArchive sets the archive that finished run reports are saved to
func WithArchive(archive interfaces.ReportArchive) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.archive = archive
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder metrics.Recorder) PipelineOption {
	return func(uc *pipelineUseCase) {
		uc.recorder = recorder
	}
}

// NewPipeline creates the release pipeline executor. Stages whose
// dependencies are not configured fail with a config error when they
// are enabled and reached.
func NewPipeline(ledger interfaces.RunLedger, options ...PipelineOption) interfaces.PipelineUseCase {
	uc := &pipelineUseCase{
		manifest: model.DefaultManifest(),
		ledger:   ledger,
		recorder: metrics.Nop(),
	}
	for _, opt := range options {
		opt(uc)
	}
	return uc
}

// SetManifest replaces the manifest for subsequent runs. A run already
// in flight keeps the manifest it started with.
func (uc *pipelineUseCase) SetManifest(manifest *model.Manifest) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	uc.manifest = manifest
}

func (uc *pipelineUseCase) currentManifest() *model.Manifest {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return uc.manifest
}

// Execute runs the pipeline for a recorded run. Stages execute in
// manifest order: a disabled stage is recorded but never executed, and
// once a stage fails every later stage is skipped. The first stage
// failure is returned after the run is closed out.
func (uc *pipelineUseCase) Execute(ctx context.Context, id types.RunID) (*model.PipelineRun, error) {
	run, err := uc.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != model.RunStatusCreated {
		return run, goerr.New("run already started",
			goerr.T(types.ErrTagBadRequest),
			goerr.V("run_id", run.ID),
			goerr.V("status", run.Status),
		)
	}

	manifest := uc.currentManifest()

	logger := ctxlog.From(ctx).With("run_id", run.ID)
	ctx = ctxlog.With(ctx, logger)

	run.MarkRunning()
	if err := uc.ledger.Put(ctx, run); err != nil {
		return nil, err
	}

	logger.Info("Starting pipeline run",
		"trigger", run.Trigger,
		"version", run.Request.Version,
		"platforms", run.Request.Platforms.String(),
		"repository", run.Request.Repository,
		"commit_sha", run.Request.CommitSHA,
	)

	var aborted bool
	var stageErr error

	for _, spec := range manifest.Stages {
		select {
		case <-ctx.Done():
			run.Stages = append(run.Stages, model.StageResult{
				Name:   spec.Name,
				Status: model.StageStatusCanceled,
			})
			run.MarkFinished(model.RunStatusCanceled)
			uc.recorder.RecordRun(run.Status, run.Duration())
			if err := uc.ledger.Put(context.WithoutCancel(ctx), run); err != nil {
				logger.Warn("Failed to persist canceled run", "error", err)
			}
			return run, goerr.Wrap(ctx.Err(), "pipeline run canceled", goerr.V("run_id", run.ID))

		default:
		}

		result, err := uc.executeStage(ctx, run, spec, aborted)
		if err != nil && stageErr == nil {
			stageErr = err
			aborted = true
		}

		run.Stages = append(run.Stages, result)
		uc.recorder.RecordStage(spec.Name, result.Status, result.Duration)
		if err := uc.ledger.Put(ctx, run); err != nil {
			logger.Warn("Failed to persist run state", "stage", spec.Name, "error", err)
		}
	}

	if stageErr != nil {
		run.Error = stageErr.Error()
		run.MarkFinished(model.RunStatusFailed)
	} else {
		run.MarkFinished(model.RunStatusSucceeded)
	}
	uc.recorder.RecordRun(run.Status, run.Duration())

	if err := uc.ledger.Put(ctx, run); err != nil {
		logger.Warn("Failed to persist finished run", "error", err)
	}
	uc.archiveReport(ctx, run)

	if stageErr != nil {
		return run, goerr.Wrap(stageErr, "pipeline run failed", goerr.V("run_id", run.ID))
	}

	logger.Info("Pipeline run succeeded", "duration", run.Duration())
	return run, nil
}

// executeStage applies the gate conditions for one stage and executes it
// when they pass. The returned error is nil unless the stage actually
// ran and failed.
func (uc *pipelineUseCase) executeStage(ctx context.Context, run *model.PipelineRun, spec model.StageSpec, aborted bool) (model.StageResult, error) {
	logger := ctxlog.From(ctx)

	if !spec.Enabled {
		logger.Info("Stage disabled, not executing", "stage", spec.Name)
		return model.StageResult{Name: spec.Name, Status: model.StageStatusDisabled}, nil
	}
	if aborted {
		logger.Warn("Skipping stage after earlier failure", "stage", spec.Name)
		return model.StageResult{Name: spec.Name, Status: model.StageStatusSkipped}, nil
	}
	if !run.StagesSucceeded(spec.Needs) {
		logger.Warn("Skipping stage, dependencies did not succeed",
			"stage", spec.Name,
			"needs", spec.Needs,
		)
		return model.StageResult{Name: spec.Name, Status: model.StageStatusSkipped}, nil
	}

	stageCtx := ctx
	if d := spec.Timeout.Duration(); d > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	startedAt := time.Now().UTC()
	logger.Info("Starting stage", "stage", spec.Name)

	err := uc.runStage(stageCtx, run, spec.Name)

	result := model.StageResult{
		Name:      spec.Name,
		StartedAt: &startedAt,
		Duration:  time.Since(startedAt),
	}
	if err != nil {
		result.Status = model.StageStatusFailed
		result.Error = err.Error()
		result.ErrorKind = types.ErrorKind(err)
		logger.Error("Stage failed",
			"stage", spec.Name,
			"error", err,
			"error_kind", result.ErrorKind,
			"duration", result.Duration,
		)
		return result, err
	}

	result.Status = model.StageStatusSucceeded
	logger.Info("Stage succeeded", "stage", spec.Name, "duration", result.Duration)
	return result, nil
}

func (uc *pipelineUseCase) runStage(ctx context.Context, run *model.PipelineRun, name types.StageName) error {
	switch name {
	case types.StageTag:
		return uc.stageTag(ctx, run)
	case types.StageImage:
		return uc.stageImage(ctx, run)
	case types.StagePublish:
		return uc.stagePublish(ctx, run)
	case types.StageNotify:
		return uc.stageNotify(ctx, run)
	default:
		return goerr.New("no executor for stage",
			goerr.T(types.ErrTagConfig), goerr.V("stage", name))
	}
}

// stageImage acquires a registry credential, then builds and pushes the
// container image tagged with the commit SHA of the run
func (uc *pipelineUseCase) stageImage(ctx context.Context, run *model.PipelineRun) error {
	if uc.creds == nil || uc.builder == nil {
		return goerr.New("image stage is not configured", goerr.T(types.ErrTagConfig))
	}

	cred, err := uc.creds.Credential(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to acquire registry credential", goerr.T(types.ErrTagAuth))
	}

	result, err := uc.builder.BuildAndPush(ctx, cred, &run.Request)
	if err != nil {
		return err
	}

	run.Image = &result.Image
	ctxlog.From(ctx).Info("Pushed container image",
		"image", result.Image.String(),
		"digest", result.Digest,
		"platforms", result.Platforms.String(),
	)
	return nil
}

// stageTag pushes an annotated release tag pointing at the commit of
// the run
func (uc *pipelineUseCase) stageTag(ctx context.Context, run *model.PipelineRun) error {
	if uc.git == nil {
		return goerr.New("tag stage is not configured: no git client", goerr.T(types.ErrTagConfig))
	}

	tag := run.Request.TagVersion()
	message := fmt.Sprintf("Release %s", tag)
	if err := uc.git.PushTag(ctx, tag, run.Request.CommitSHA, message); err != nil {
		return goerr.Wrap(err, "failed to push release tag", goerr.V("tag", tag))
	}

	ctxlog.From(ctx).Info("Pushed release tag",
		"tag", tag,
		"commit_sha", run.Request.CommitSHA,
	)
	return nil
}

func (uc *pipelineUseCase) stagePublish(ctx context.Context, run *model.PipelineRun) error {
	if uc.publisher == nil {
		return goerr.New("publish stage is not configured: no publisher", goerr.T(types.ErrTagConfig))
	}

	if err := uc.publisher.Publish(ctx, &run.Request); err != nil {
		return goerr.Wrap(err, "failed to publish packages")
	}

	ctxlog.From(ctx).Info("Published packages", "version", run.Request.Version)
	return nil
}

// stageNotify delivers a run report. Announcement drafting is best
// effort: when it fails the notification still goes out without copy.
func (uc *pipelineUseCase) stageNotify(ctx context.Context, run *model.PipelineRun) error {
	if uc.notifier == nil {
		return goerr.New("notify stage is not configured: no notifier", goerr.T(types.ErrTagConfig))
	}

	report := model.NewRunReport(run)

	if uc.announcer != nil {
		announcement, err := uc.announcer.Draft(ctx, report)
		if err != nil {
			ctxlog.From(ctx).Warn("Failed to draft announcement, notifying without it", "error", err)
		} else {
			report.Announcement = announcement
		}
	}

	if err := uc.notifier.Notify(ctx, report); err != nil {
		return goerr.Wrap(err, "failed to deliver notification")
	}
	return nil
}

func (uc *pipelineUseCase) archiveReport(ctx context.Context, run *model.PipelineRun) {
	if uc.archive == nil {
		return
	}

	location, err := uc.archive.Save(ctx, model.NewRunReport(run))
	if err != nil {
		ctxlog.From(ctx).Warn("Failed to archive run report", "run_id", run.ID, "error", err)
		return
	}
	ctxlog.From(ctx).Debug("Archived run report", "location", location)
}
