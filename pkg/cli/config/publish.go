package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/infra/publish"
)

// Publish holds package publish configuration
type Publish struct {
	Command string
	Dir     string
	Shell   string
}

// Flags returns CLI flags for publish configuration
func (c *Publish) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "publish-command",
			Usage:       "Shell command run by the publish stage",
			Destination: &c.Command,
			Sources:     cli.EnvVars("CATAPULT_PUBLISH_COMMAND"),
		},
		&cli.StringFlag{
			Name:        "publish-dir",
			Usage:       "Working directory of the publish command",
			Destination: &c.Dir,
			Sources:     cli.EnvVars("CATAPULT_PUBLISH_DIR"),
		},
		&cli.StringFlag{
			Name:        "publish-shell",
			Usage:       "Shell interpreting the publish command",
			Value:       "/bin/sh",
			Destination: &c.Shell,
			Sources:     cli.EnvVars("CATAPULT_PUBLISH_SHELL"),
		},
	}
}

// Publisher returns the command publisher, nil when no command is set
func (c *Publish) Publisher() interfaces.PackagePublisher {
	if c.Command == "" {
		return nil
	}

	var opts []publish.Option
	if c.Shell != "" {
		opts = append(opts, publish.WithShell(c.Shell))
	}
	if c.Dir != "" {
		opts = append(opts, publish.WithDir(c.Dir))
	}
	return publish.NewCommand(c.Command, opts...)
}
