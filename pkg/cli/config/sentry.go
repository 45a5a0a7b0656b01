package config

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// Sentry holds error tracking configuration
type Sentry struct {
	DSN string
	Env string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error tracking (empty disables it)",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("CATAPULT_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment name",
			Destination: &c.Env,
			Sources:     cli.EnvVars("CATAPULT_SENTRY_ENV"),
		},
	}
}

// Configure initializes the Sentry SDK. Without a DSN it does nothing.
func (c *Sentry) Configure() error {
	if c.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Env,
		Release:     types.Version,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to initialize sentry", goerr.T(types.ErrTagConfig))
	}
	return nil
}

// Capture reports an error to Sentry
func (c *Sentry) Capture(err error) {
	if c.DSN == "" || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// Flush sends buffered events before the process exits
func (c *Sentry) Flush() {
	if c.DSN == "" {
		return
	}
	sentry.Flush(2 * time.Second)
}
