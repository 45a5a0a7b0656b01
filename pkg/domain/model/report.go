package model

import (
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// Announcement is LLM-drafted release announcement copy attached to
// a notification
type Announcement struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
}

// RunReport is a snapshot of a pipeline run used for notifications and
// report archiving
type RunReport struct {
	RunID        types.RunID       `json:"run_id"`
	Status       RunStatus         `json:"status"`
	Trigger      types.TriggerKind `json:"trigger"`
	Version      string            `json:"version"`
	Repository   string            `json:"repository"`
	CommitSHA    string            `json:"commit_sha"`
	Branch       string            `json:"branch,omitempty"`
	Platforms    Platforms         `json:"platforms"`
	Image        string            `json:"image,omitempty"`
	Stages       []StageResult     `json:"stages"`
	Duration     time.Duration     `json:"duration_ns"`
	FinishedAt   time.Time         `json:"finished_at"`
	Announcement *Announcement     `json:"announcement,omitempty"`
}

// NewRunReport builds a report from the current state of a run. For a run
// still in flight (the notify stage reports before the run closes), the
// status is derived from the stage results recorded so far.
func NewRunReport(run *PipelineRun) *RunReport {
	report := &RunReport{
		RunID:      run.ID,
		Status:     run.Status,
		Trigger:    run.Trigger,
		Version:    run.Request.Version,
		Repository: run.Request.Repository,
		CommitSHA:  run.Request.CommitSHA,
		Branch:     run.Request.Branch,
		Platforms:  run.Request.Platforms,
		Stages:     run.Stages,
		Duration:   run.Duration(),
	}

	if run.Image != nil {
		report.Image = run.Image.String()
	}
	if run.FinishedAt != nil {
		report.FinishedAt = *run.FinishedAt
	} else {
		report.FinishedAt = time.Now().UTC()
	}

	if !run.Finished() {
		report.Status = RunStatusSucceeded
		for _, r := range run.Stages {
			if r.Status == StageStatusFailed {
				report.Status = RunStatusFailed
				break
			}
		}
		if run.StartedAt != nil {
			report.Duration = time.Since(*run.StartedAt)
		}
	}

	return report
}
