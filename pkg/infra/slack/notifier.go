package slack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const timeRounding = 100 * time.Millisecond

type notifier struct {
	webhookURL string
}

// New creates a Notifier posting run reports to a Slack incoming webhook
func New(webhookURL string) interfaces.Notifier {
	return &notifier{
		webhookURL: webhookURL,
	}
}

// Notify posts the run report to the configured webhook
func (x *notifier) Notify(ctx context.Context, report *model.RunReport) error {
	msg := buildMessage(report)

	if err := slack.PostWebhookContext(ctx, x.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack webhook",
			goerr.V("run_id", report.RunID))
	}

	ctxlog.From(ctx).Info("Posted run report to slack",
		"run_id", report.RunID,
		"status", report.Status,
	)
	return nil
}

// buildMessage renders the report as a webhook message with one
// attachment summarizing the run
func buildMessage(report *model.RunReport) *slack.WebhookMessage {
	color := "good"
	title := fmt.Sprintf("Release succeeded: %s %s", report.Repository, report.Version)
	if report.Status != model.RunStatusSucceeded {
		color = "danger"
		title = fmt.Sprintf("Release %s: %s %s", report.Status, report.Repository, report.Version)
	}

	var text string
	if report.Announcement != nil {
		text = fmt.Sprintf("*%s*\n%s", report.Announcement.Headline, report.Announcement.Summary)
	}

	fields := []slack.AttachmentField{
		{Title: "Version", Value: report.Version, Short: true},
		{Title: "Trigger", Value: string(report.Trigger), Short: true},
		{Title: "Commit", Value: shortSHA(report.CommitSHA), Short: true},
		{Title: "Duration", Value: report.Duration.Round(timeRounding).String(), Short: true},
	}
	if report.Image != "" {
		fields = append(fields, slack.AttachmentField{Title: "Image", Value: report.Image})
	}

	attachment := slack.Attachment{
		Color:  color,
		Title:  title,
		Text:   stageLines(report.Stages),
		Fields: fields,
		Footer: types.ServiceName,
	}

	return &slack.WebhookMessage{
		Text:        text,
		Attachments: []slack.Attachment{attachment},
	}
}

// stageLines renders one status line per stage
func stageLines(stages []model.StageResult) string {
	var sb strings.Builder
	for _, st := range stages {
		sb.WriteString(fmt.Sprintf("%s %s", stageEmoji(st.Status), st.Name))
		if st.Status == model.StageStatusSucceeded || st.Status == model.StageStatusFailed {
			sb.WriteString(fmt.Sprintf(" (%s)", st.Duration.Round(timeRounding)))
		}
		if st.Error != "" {
			sb.WriteString(fmt.Sprintf(" `%s`", st.Error))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func stageEmoji(status model.StageStatus) string {
	switch status {
	case model.StageStatusSucceeded:
		return ":white_check_mark:"
	case model.StageStatusFailed:
		return ":x:"
	case model.StageStatusDisabled:
		return ":no_entry_sign:"
	case model.StageStatusCanceled:
		return ":octagonal_sign:"
	default:
		return ":fast_forward:"
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
