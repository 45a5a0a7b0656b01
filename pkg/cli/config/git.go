package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/infra/gitx"
)

// Git holds repository configuration. The override flags carry CI
// environment values which win over anything derived from the checkout.
type Git struct {
	Dir    string
	Remote string
	Token  string

	Repository string
	CommitSHA  string
	Branch     string
}

// Flags returns CLI flags for git configuration
func (c *Git) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "git-dir",
			Usage:       "Path of the repository checkout",
			Value:       ".",
			Destination: &c.Dir,
			Sources:     cli.EnvVars("CATAPULT_GIT_DIR"),
		},
		&cli.StringFlag{
			Name:        "git-remote",
			Usage:       "Remote used for context derivation and tag pushes",
			Value:       "origin",
			Destination: &c.Remote,
			Sources:     cli.EnvVars("CATAPULT_GIT_REMOTE"),
		},
		&cli.StringFlag{
			Name:        "git-token",
			Usage:       "Token for pushing release tags over HTTPS",
			Destination: &c.Token,
			Sources:     cli.EnvVars("CATAPULT_GIT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Repository slug override, e.g. cloudforet-io/console",
			Destination: &c.Repository,
			Sources:     cli.EnvVars("CATAPULT_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "commit-sha",
			Usage:       "Commit SHA override for the release",
			Destination: &c.CommitSHA,
			Sources:     cli.EnvVars("CATAPULT_COMMIT_SHA"),
		},
		&cli.StringFlag{
			Name:        "branch",
			Usage:       "Branch name override",
			Destination: &c.Branch,
			Sources:     cli.EnvVars("CATAPULT_BRANCH"),
		},
	}
}

// Client creates the git client with the configured overrides
func (c *Git) Client() interfaces.GitClient {
	return gitx.New(c.Dir,
		gitx.WithRemote(c.Remote),
		gitx.WithToken(c.Token),
		gitx.WithOverrides(model.GitContext{
			Repository: c.Repository,
			CommitSHA:  c.CommitSHA,
			Branch:     c.Branch,
		}),
	)
}
