package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/cli/config"
	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/infra/build"
	"github.com/m-mizutani/catapult/pkg/infra/registry"
	"github.com/m-mizutani/catapult/pkg/usecase"
	"github.com/m-mizutani/catapult/pkg/utils/metrics"
)

// releaseConfig bundles the configuration shared by the run and serve
// commands.
type releaseConfig struct {
	Manifest config.Manifest
	Git      config.Git
	Registry config.Registry
	Builder  config.Builder
	Slack    config.Slack
	Publish  config.Publish
	Gemini   config.Gemini
	Ledger   config.Ledger
	Archive  config.Archive
}

func (c *releaseConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, c.Manifest.Flags()...)
	flags = append(flags, c.Git.Flags()...)
	flags = append(flags, c.Registry.Flags()...)
	flags = append(flags, c.Builder.Flags()...)
	flags = append(flags, c.Slack.Flags()...)
	flags = append(flags, c.Publish.Flags()...)
	flags = append(flags, c.Gemini.Flags()...)
	flags = append(flags, c.Ledger.Flags()...)
	flags = append(flags, c.Archive.Flags()...)
	return flags
}

// repository resolves the image repository, falling back to the slug of
// the local git checkout when the flag is not set.
func (c *releaseConfig) repository(ctx context.Context, git interfaces.GitClient) (string, error) {
	if c.Registry.Repository != "" {
		return c.Registry.Repository, nil
	}

	gctx, err := git.Context(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to derive image repository from git, set --registry-repository",
			goerr.T(types.ErrTagConfig))
	}
	if gctx.Repository == "" {
		return "", goerr.New("git remote has no repository slug, set --registry-repository",
			goerr.T(types.ErrTagConfig))
	}

	return gctx.Repository, nil
}

// pipelineOptions assembles the pipeline wiring shared by the run and
// serve commands. With dryRun the image stage gets a no-op builder and
// inert credentials so the pipeline can execute without touching the
// registry.
func (c *releaseConfig) pipelineOptions(ctx context.Context, m *model.Manifest, git interfaces.GitClient, recorder metrics.Recorder, dryRun bool) ([]usecase.PipelineOption, error) {
	opts := []usecase.PipelineOption{
		usecase.WithManifest(m),
		usecase.WithGitClient(git),
	}
	if recorder != nil {
		opts = append(opts, usecase.WithRecorder(recorder))
	}

	repository, err := c.repository(ctx, git)
	if err != nil {
		return nil, err
	}

	if dryRun {
		opts = append(opts,
			usecase.WithBuilder(build.NewNoop(c.Registry.Host, repository)),
			usecase.WithCredentialSource(registry.NewStatic(c.Registry.Host, "dry-run", "dry-run")),
		)
	} else {
		creds, err := c.Registry.CredentialSource()
		if err != nil {
			return nil, err
		}
		if creds != nil {
			opts = append(opts,
				usecase.WithCredentialSource(creds),
				usecase.WithBuilder(c.Builder.Build(c.Registry.Host, repository)),
			)
		}
	}

	if notifier := c.Slack.Notifier(); notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	if publisher := c.Publish.Publisher(); publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}

	if c.Gemini.Enabled() {
		llmClient, err := c.Gemini.Client(ctx)
		if err != nil {
			return nil, err
		}
		announcer, err := usecase.NewAnnounce(llmClient)
		if err != nil {
			return nil, err
		}
		opts = append(opts, usecase.WithAnnouncer(announcer))
	}

	archive, err := c.Archive.Build(ctx)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}

	return opts, nil
}
