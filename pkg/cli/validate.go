package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/cli/config"
)

func cmdValidate() *cli.Command {
	var manifestCfg config.Manifest

	return &cli.Command{
		Name:  "validate",
		Usage: "Validate the release manifest and show the pipeline it declares",
		Flags: manifestCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			m, err := manifestCfg.Load()
			if err != nil {
				return err
			}

			for _, st := range m.Stages {
				state := color.New(color.Faint).Sprint("disabled")
				if st.Enabled {
					state = color.New(color.FgGreen).Sprint("enabled")
				}
				line := fmt.Sprintf("  %-10s %s", st.Name, state)
				if len(st.Needs) > 0 {
					line += fmt.Sprintf("  needs: %v", st.Needs)
				}
				if st.Timeout.Duration() > 0 {
					line += fmt.Sprintf("  timeout: %s", st.Timeout.Duration())
				}
				fmt.Fprintln(os.Stdout, line)
			}
			if m.Schedule != nil {
				fmt.Fprintf(os.Stdout, "  schedule: every %s\n", m.Schedule.Interval.Duration())
			}

			color.New(color.FgGreen).Fprintln(os.Stdout, "Manifest is valid")
			return nil
		},
	}
}
