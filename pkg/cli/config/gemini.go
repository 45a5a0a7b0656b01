package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// Gemini holds Gemini LLM configuration for announcement drafting
type Gemini struct {
	ProjectID string
	Location  string
	Model     string
}

// Flags returns CLI flags for Gemini configuration
func (c *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project-id",
			Usage:       "Google Cloud Project ID for Gemini (empty disables announcements)",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("CATAPULT_GEMINI_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Vertex AI location/region",
			Value:       "us-central1",
			Destination: &c.Location,
			Sources:     cli.EnvVars("CATAPULT_GEMINI_LOCATION"),
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model to use",
			Value:       "gemini-2.5-flash",
			Destination: &c.Model,
			Sources:     cli.EnvVars("CATAPULT_GEMINI_MODEL"),
		},
	}
}

// Enabled reports whether announcement drafting is configured
func (c *Gemini) Enabled() bool {
	return c.ProjectID != ""
}

// Client creates the Gemini LLM client
func (c *Gemini) Client(ctx context.Context) (gollem.LLMClient, error) {
	client, err := gemini.New(ctx, c.ProjectID, c.Location,
		gemini.WithModel(c.Model),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("project_id", c.ProjectID),
			goerr.V("location", c.Location),
			goerr.T(types.ErrTagConfig))
	}
	return client, nil
}
