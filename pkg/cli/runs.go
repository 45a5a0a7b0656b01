package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/cli/config"
	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// listLimit caps how many runs the list subcommand shows
const listLimit = 20

func cmdRuns() *cli.Command {
	var ledgerCfg config.Ledger

	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect recorded pipeline runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the most recent runs, newest first",
				Flags: ledgerCfg.Flags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					store, err := ledgerCfg.Build(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					runs, err := store.List(ctx, listLimit)
					if err != nil {
						return err
					}
					for _, run := range runs {
						printRunLine(os.Stdout, run)
					}
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Show one run with its stage results",
				ArgsUsage: "<run-id>",
				Flags:     ledgerCfg.Flags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return goerr.New("exactly one run ID argument is required",
							goerr.T(types.ErrTagBadRequest))
					}

					store, err := ledgerCfg.Build(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					run, err := store.Get(ctx, types.RunID(c.Args().First()))
					if err != nil {
						return err
					}

					printRun(os.Stdout, run)
					return nil
				},
			},
		},
	}
}
