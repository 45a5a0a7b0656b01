package model

import (
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// RunStatus represents the lifecycle state of a pipeline run
type RunStatus string

const (
	RunStatusCreated   RunStatus = "created"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// StageStatus represents the outcome of a single stage within a run
type StageStatus string

const (
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
	// StageStatusSkipped means a gate condition was not met: an earlier
	// stage failed or a declared dependency did not succeed
	StageStatusSkipped StageStatus = "skipped"
	// StageStatusDisabled means the stage was administratively disabled
	StageStatusDisabled StageStatus = "disabled"
	StageStatusCanceled StageStatus = "canceled"
)

// StageResult records the outcome of one stage
type StageResult struct {
	Name      types.StageName `json:"name"`
	Status    StageStatus     `json:"status"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	Duration  time.Duration   `json:"duration_ns,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

// PipelineRun is one execution of the release pipeline
type PipelineRun struct {
	ID         types.RunID       `json:"id"`
	Trigger    types.TriggerKind `json:"trigger"`
	Request    ReleaseRequest    `json:"request"`
	Status     RunStatus         `json:"status"`
	Stages     []StageResult     `json:"stages,omitempty"`
	Image      *ImageRef         `json:"image,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// NewPipelineRun creates a run in the created state for a validated request
func NewPipelineRun(req ReleaseRequest, kind types.TriggerKind) *PipelineRun {
	return &PipelineRun{
		ID:        types.NewRunID(),
		Trigger:   kind,
		Request:   req,
		Status:    RunStatusCreated,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkRunning transitions the run into the running state
func (x *PipelineRun) MarkRunning() {
	now := time.Now().UTC()
	x.Status = RunStatusRunning
	x.StartedAt = &now
}

// MarkFinished transitions the run into a terminal state
func (x *PipelineRun) MarkFinished(status RunStatus) {
	now := time.Now().UTC()
	x.Status = status
	x.FinishedAt = &now
}

// Finished reports whether the run reached a terminal state
func (x *PipelineRun) Finished() bool {
	switch x.Status {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// Duration returns the wall clock time of the run, zero until finished
func (x *PipelineRun) Duration() time.Duration {
	if x.StartedAt == nil || x.FinishedAt == nil {
		return 0
	}
	return x.FinishedAt.Sub(*x.StartedAt)
}

// StageResult returns the recorded result for a stage, if any
func (x *PipelineRun) StageResult(name types.StageName) (StageResult, bool) {
	for _, r := range x.Stages {
		if r.Name == name {
			return r, true
		}
	}
	return StageResult{}, false
}

// StagesSucceeded reports whether every named stage has completed
// successfully in this run
func (x *PipelineRun) StagesSucceeded(names []types.StageName) bool {
	for _, name := range names {
		r, ok := x.StageResult(name)
		if !ok || r.Status != StageStatusSucceeded {
			return false
		}
	}
	return true
}
