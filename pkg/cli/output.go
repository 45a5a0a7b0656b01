package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/m-mizutani/catapult/pkg/domain/model"
)

func statusColor(status string) *color.Color {
	switch status {
	case string(model.RunStatusSucceeded):
		return color.New(color.FgGreen)
	case string(model.RunStatusFailed):
		return color.New(color.FgRed)
	case string(model.RunStatusRunning):
		return color.New(color.FgYellow)
	case string(model.StageStatusSkipped), string(model.StageStatusDisabled):
		return color.New(color.Faint)
	default:
		return color.New()
	}
}

// printRunLine writes one run as a single list row
func printRunLine(w io.Writer, run *model.PipelineRun) {
	status := statusColor(string(run.Status)).Sprintf("%-10s", run.Status)
	fmt.Fprintf(w, "%s  %s  %-12s  %-32s  %s\n",
		run.ID, status, run.Request.Version, run.Request.Repository,
		run.CreatedAt.Format(time.RFC3339))
}

// printRun writes the full detail of a run including per-stage results
func printRun(w io.Writer, run *model.PipelineRun) {
	fmt.Fprintf(w, "Run:        %s\n", run.ID)
	fmt.Fprintf(w, "Status:     %s\n", statusColor(string(run.Status)).Sprint(run.Status))
	fmt.Fprintf(w, "Trigger:    %s\n", run.Trigger)
	fmt.Fprintf(w, "Version:    %s\n", run.Request.Version)
	fmt.Fprintf(w, "Platforms:  %s\n", run.Request.Platforms)
	fmt.Fprintf(w, "Repository: %s\n", run.Request.Repository)
	fmt.Fprintf(w, "Commit:     %s\n", run.Request.CommitSHA)
	if run.Image != nil {
		fmt.Fprintf(w, "Image:      %s\n", run.Image)
	}
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(w, "Duration:   %s\n", d.Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", statusColor(string(model.RunStatusFailed)).Sprint(run.Error))
	}

	if len(run.Stages) == 0 {
		return
	}
	fmt.Fprintf(w, "Stages:\n")
	for _, r := range run.Stages {
		line := fmt.Sprintf("  %-10s %s", r.Name, statusColor(string(r.Status)).Sprintf("%-10s", r.Status))
		if r.Duration > 0 {
			line += fmt.Sprintf("  %s", r.Duration.Round(time.Millisecond))
		}
		if r.Error != "" {
			line += fmt.Sprintf("  %s", r.Error)
		}
		fmt.Fprintln(w, line)
	}
}
