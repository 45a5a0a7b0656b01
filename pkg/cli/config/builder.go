package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/infra/build"
)

// Builder holds container build configuration
type Builder struct {
	Bin        string
	ContextDir string
	Dockerfile string
}

// Flags returns CLI flags for build configuration
func (c *Builder) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "docker-bin",
			Usage:       "Docker binary used for buildx",
			Value:       "docker",
			Destination: &c.Bin,
			Sources:     cli.EnvVars("CATAPULT_DOCKER_BIN"),
		},
		&cli.StringFlag{
			Name:        "build-context",
			Usage:       "Build context directory",
			Value:       ".",
			Destination: &c.ContextDir,
			Sources:     cli.EnvVars("CATAPULT_BUILD_CONTEXT"),
		},
		&cli.StringFlag{
			Name:        "dockerfile",
			Usage:       "Dockerfile path relative to the build context",
			Value:       "Dockerfile",
			Destination: &c.Dockerfile,
			Sources:     cli.EnvVars("CATAPULT_DOCKERFILE"),
		},
	}
}

// Build creates the buildx image builder for the given image location
func (c *Builder) Build(registryHost, repository string) interfaces.ImageBuilder {
	return build.New(registryHost, repository,
		build.WithBin(c.Bin),
		build.WithContextDir(c.ContextDir),
		build.WithDockerfile(c.Dockerfile),
	)
}
