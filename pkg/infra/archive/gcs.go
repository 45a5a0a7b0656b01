package archive

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// gcsArchive writes run reports to a Cloud Storage bucket using the
// same date-partitioned layout as the directory archive
type gcsArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

type GCSOption func(*gcsArchive)

// WithPrefix prepends a key prefix to every archived object
func WithPrefix(prefix string) GCSOption {
	return func(x *gcsArchive) {
		x.prefix = prefix
	}
}

// NewGCS creates a ReportArchive backed by a Cloud Storage bucket
func NewGCS(ctx context.Context, bucket string, options ...GCSOption) (interfaces.ReportArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	archive := &gcsArchive{
		client: client,
		bucket: bucket,
	}
	for _, opt := range options {
		opt(archive)
	}
	return archive, nil
}

func (x *gcsArchive) Save(ctx context.Context, report *model.RunReport) (string, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal run report", goerr.V("run_id", report.RunID))
	}

	key := path.Join(x.prefix, report.FinishedAt.UTC().Format("2006/01/02"), string(report.RunID)+".json")

	w := x.client.Bucket(x.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write run report object",
			goerr.V("bucket", x.bucket), goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close run report object",
			goerr.V("bucket", x.bucket), goerr.V("key", key))
	}

	location := "gs://" + path.Join(x.bucket, key)
	ctxlog.From(ctx).Debug("Archived run report", "location", location)
	return location, nil
}
