package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

//go:embed prompts/announce_system.md
var announceSystemPrompt string

//go:embed prompts/announce_user.md
var announceUserTemplate string

type announceUseCase struct {
	llmClient    gollem.LLMClient
	userTemplate *template.Template
}

// NewAnnounce creates an AnnounceUseCase that drafts release
// announcement copy with an LLM
func NewAnnounce(llmClient gollem.LLMClient) (interfaces.AnnounceUseCase, error) {
	tmpl, err := template.New("user").Parse(announceUserTemplate)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse user prompt template")
	}

	return &announceUseCase{
		llmClient:    llmClient,
		userTemplate: tmpl,
	}, nil
}

// Draft generates announcement copy for a run report
func (uc *announceUseCase) Draft(ctx context.Context, report *model.RunReport) (*model.Announcement, error) {
	logger := ctxlog.From(ctx)

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal run report")
	}

	var buf bytes.Buffer
	if err := uc.userTemplate.Execute(&buf, map[string]string{
		"Report": string(reportJSON),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute user prompt template")
	}
	userPrompt := buf.String()

	logger.Debug("Calling LLM for announcement draft", "prompt_length", len(userPrompt))

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionSystemPrompt(announceSystemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate LLM content")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("no response from LLM")
	}

	var announcement model.Announcement
	if err := json.Unmarshal([]byte(resp.Texts[0]), &announcement); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", resp.Texts[0]))
	}
	if announcement.Headline == "" {
		return nil, goerr.New("LLM response has no headline", goerr.V("response", resp.Texts[0]))
	}

	logger.Info("Drafted release announcement",
		"run_id", report.RunID,
		"headline", announcement.Headline,
	)
	return &announcement, nil
}
