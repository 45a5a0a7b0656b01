package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/infra/manifest"
)

// Manifest holds pipeline manifest configuration
type Manifest struct {
	Path  string
	Watch bool
}

// Flags returns CLI flags for manifest configuration
func (c *Manifest) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "manifest",
			Usage:       "Pipeline manifest path (YAML or TOML)",
			Destination: &c.Path,
			Sources:     cli.EnvVars("CATAPULT_MANIFEST"),
		},
		&cli.BoolFlag{
			Name:        "manifest-watch",
			Usage:       "Reload stage definitions when the manifest changes",
			Destination: &c.Watch,
			Sources:     cli.EnvVars("CATAPULT_MANIFEST_WATCH"),
		},
	}
}

// Load reads the pipeline manifest. A missing default manifest falls
// back to the built-in pipeline.
func (c *Manifest) Load() (*model.Manifest, error) {
	return manifest.LoadOrDefault(c.Path)
}

// WatchPath is the file path the manifest watcher observes
func (c *Manifest) WatchPath() string {
	if c.Path == "" {
		return manifest.DefaultPath
	}
	return c.Path
}
