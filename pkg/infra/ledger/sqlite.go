package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

type sqliteLedger struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite-backed RunLedger at the given
// path. Use ":memory:" for an ephemeral database.
func NewSQLite(path string) (interfaces.RunLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database",
			goerr.T(types.ErrTagConfig), goerr.V("path", path))
	}

	// The driver does not support concurrent writers on one file
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize run table",
			goerr.T(types.ErrTagConfig), goerr.V("path", path))
	}

	return &sqliteLedger{db: db}, nil
}

func (x *sqliteLedger) Put(ctx context.Context, run *model.PipelineRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal run", goerr.V("run_id", run.ID))
	}

	_, err = x.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, created_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		string(run.ID), string(run.Status), run.CreatedAt.UnixNano(), raw,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert run", goerr.V("run_id", run.ID))
	}
	return nil
}

func (x *sqliteLedger) Get(ctx context.Context, id types.RunID) (*model.PipelineRun, error) {
	var raw []byte
	err := x.db.QueryRowContext(ctx, "SELECT data FROM runs WHERE id = ?", string(id)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(types.ErrRunNotFound, "no such run in sqlite ledger", goerr.V("run_id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query run", goerr.V("run_id", id))
	}

	var run model.PipelineRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal run", goerr.V("run_id", id))
	}
	return &run, nil
}

func (x *sqliteLedger) List(ctx context.Context, limit int) ([]*model.PipelineRun, error) {
	// LIMIT -1 means no limit in SQLite
	if limit <= 0 {
		limit = -1
	}

	rows, err := x.db.QueryContext(ctx,
		"SELECT data FROM runs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []*model.PipelineRun
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, goerr.Wrap(err, "failed to scan run row")
		}
		var run model.PipelineRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal run")
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate run rows")
	}

	return runs, nil
}

func (x *sqliteLedger) Close() error {
	return x.db.Close()
}
