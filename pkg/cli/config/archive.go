package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/infra/archive"
)

// Archive holds report archive configuration
type Archive struct {
	Dir    string
	Bucket string
	Prefix string
}

// Flags returns CLI flags for archive configuration
func (c *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-dir",
			Usage:       "Directory for archived run reports",
			Destination: &c.Dir,
			Sources:     cli.EnvVars("CATAPULT_ARCHIVE_DIR"),
		},
		&cli.StringFlag{
			Name:        "archive-gcs-bucket",
			Usage:       "GCS bucket for archived run reports",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("CATAPULT_ARCHIVE_GCS_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "archive-gcs-prefix",
			Usage:       "Object key prefix in the archive bucket",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("CATAPULT_ARCHIVE_GCS_PREFIX"),
		},
	}
}

// Build returns the configured report archive, nil when archiving is off
func (c *Archive) Build(ctx context.Context) (interfaces.ReportArchive, error) {
	if c.Dir != "" && c.Bucket != "" {
		return nil, goerr.New("archive-dir and archive-gcs-bucket are exclusive", goerr.T(types.ErrTagConfig))
	}

	if c.Bucket != "" {
		return archive.NewGCS(ctx, c.Bucket, archive.WithPrefix(c.Prefix))
	}
	if c.Dir != "" {
		return archive.NewDir(c.Dir), nil
	}
	return nil, nil
}
