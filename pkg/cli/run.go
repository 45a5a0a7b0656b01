package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/usecase"
)

func cmdRun() *cli.Command {
	var (
		input   model.TriggerInput
		dryRun  bool
		release releaseConfig
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "version",
			Usage:       "Release version",
			Value:       model.DefaultVersion,
			Destination: &input.Version,
			Sources:     cli.EnvVars("CATAPULT_VERSION"),
		},
		&cli.StringFlag{
			Name:        "container-arch",
			Usage:       `Image platforms, "linux/amd64" or "linux/amd64,linux/arm64"`,
			Value:       model.PlatformAMD64,
			Destination: &input.ContainerArch,
			Sources:     cli.EnvVars("CATAPULT_CONTAINER_ARCH"),
		},
		&cli.StringFlag{
			Name:        "requested-by",
			Usage:       "Operator recorded on the run",
			Destination: &input.RequestedBy,
			Sources:     cli.EnvVars("CATAPULT_REQUESTED_BY"),
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Execute the pipeline without building or pushing images",
			Destination: &dryRun,
			Sources:     cli.EnvVars("CATAPULT_DRY_RUN"),
		},
	}
	flags = append(flags, release.Flags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Execute the release pipeline once",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			m, err := release.Manifest.Load()
			if err != nil {
				return err
			}

			store, err := release.Ledger.Build(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			git := release.Git.Client()

			opts, err := release.pipelineOptions(ctx, m, git, nil, dryRun)
			if err != nil {
				return err
			}

			pipeline := usecase.NewPipeline(store, opts...)
			trigger := usecase.NewTrigger(git, store, pipeline, usecase.WithInline())

			input.Kind = types.TriggerManual
			run, err := trigger.Dispatch(ctx, &input)
			if run != nil {
				printRun(os.Stdout, run)
			}
			return err
		},
	}
}
