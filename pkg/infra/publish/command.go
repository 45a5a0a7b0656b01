package publish

import (
	"context"
	"os"
	"os/exec"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const outputTailLimit = 4 * 1024

// commandPublisher runs a configured shell command to publish release
// packages. Release metadata is handed to the command through
// environment variables so any packaging tool can be wired in without
// catapult knowing its arguments.
type commandPublisher struct {
	shell   string
	command string
	dir     string
}

type Option func(*commandPublisher)

// WithShell overrides the shell binary used to run the command
func WithShell(shell string) Option {
	return func(x *commandPublisher) {
		x.shell = shell
	}
}

// WithDir sets the working directory of the publish command
func WithDir(dir string) Option {
	return func(x *commandPublisher) {
		x.dir = dir
	}
}

// NewCommand creates a PackagePublisher that runs the given shell command
func NewCommand(command string, options ...Option) interfaces.PackagePublisher {
	publisher := &commandPublisher{
		shell:   "/bin/sh",
		command: command,
	}
	for _, opt := range options {
		opt(publisher)
	}
	return publisher
}

// Publish runs the command with CATAPULT_* variables describing the release
func (x *commandPublisher) Publish(ctx context.Context, req *model.ReleaseRequest) error {
	cmd := exec.CommandContext(ctx, x.shell, "-c", x.command)
	cmd.Dir = x.dir
	cmd.Env = append(os.Environ(),
		"CATAPULT_VERSION="+req.Version,
		"CATAPULT_COMMIT_SHA="+req.CommitSHA,
		"CATAPULT_REPOSITORY="+req.Repository,
		"CATAPULT_PLATFORMS="+req.Platforms.String(),
	)

	ctxlog.From(ctx).Info("Running publish command",
		"command", x.command,
		"version", req.Version,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return goerr.Wrap(err, "failed to run publish command",
			goerr.V("command", x.command),
			goerr.V("output", tail(out)),
		)
	}

	return nil
}

func tail(out []byte) string {
	if len(out) > outputTailLimit {
		out = out[len(out)-outputTailLimit:]
	}
	return string(out)
}
