package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// dirArchive writes run reports under a local directory, partitioned
// by finish date: <dir>/2006/01/02/<run_id>.json
type dirArchive struct {
	dir string
}

// NewDir creates a ReportArchive rooted at the given directory
func NewDir(dir string) interfaces.ReportArchive {
	return &dirArchive{dir: dir}
}

func (x *dirArchive) Save(ctx context.Context, report *model.RunReport) (string, error) {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal run report", goerr.V("run_id", report.RunID))
	}

	path := filepath.Join(x.dir, reportKey(report))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", goerr.Wrap(err, "failed to create archive directory", goerr.V("path", path))
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return "", goerr.Wrap(err, "failed to write run report", goerr.V("path", path))
	}

	ctxlog.From(ctx).Debug("Archived run report", "path", path)
	return path, nil
}

// reportKey builds the date-partitioned relative path of a report
func reportKey(report *model.RunReport) string {
	return filepath.Join(report.FinishedAt.UTC().Format("2006/01/02"), string(report.RunID)+".json")
}
