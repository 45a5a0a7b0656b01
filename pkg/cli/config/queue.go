package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/infra/queue"
)

// Queue holds NATS queue configuration
type Queue struct {
	URL     string
	Subject string
}

// Flags returns CLI flags for queue configuration
func (c *Queue) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "nats-url",
			Usage:       "NATS server URL, empty runs the pipeline in process",
			Destination: &c.URL,
			Sources:     cli.EnvVars("CATAPULT_NATS_URL"),
		},
		&cli.StringFlag{
			Name:        "nats-subject",
			Usage:       "NATS subject carrying dispatched runs",
			Value:       queue.DefaultSubject,
			Destination: &c.Subject,
			Sources:     cli.EnvVars("CATAPULT_NATS_SUBJECT"),
		},
	}
}

// Enabled reports whether a queue URL is configured
func (c *Queue) Enabled() bool {
	return c.URL != ""
}

// Connect creates the NATS queue client
func (c *Queue) Connect() (*queue.Client, error) {
	return queue.New(c.URL, queue.WithSubject(c.Subject))
}
