package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/infra/ledger"
)

// Ledger holds run ledger configuration
type Ledger struct {
	Backend string

	SQLitePath string

	FirestoreProject  string
	FirestoreDatabase string
}

// Flags returns CLI flags for ledger configuration
func (c *Ledger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "ledger",
			Usage:       "Run ledger backend (memory, sqlite, firestore)",
			Value:       "memory",
			Destination: &c.Backend,
			Sources:     cli.EnvVars("CATAPULT_LEDGER"),
		},
		&cli.StringFlag{
			Name:        "ledger-sqlite-path",
			Usage:       "SQLite database path for the sqlite backend",
			Value:       "catapult.db",
			Destination: &c.SQLitePath,
			Sources:     cli.EnvVars("CATAPULT_LEDGER_SQLITE_PATH"),
		},
		&cli.StringFlag{
			Name:        "ledger-firestore-project-id",
			Usage:       "Google Cloud project for the firestore backend",
			Destination: &c.FirestoreProject,
			Sources:     cli.EnvVars("CATAPULT_LEDGER_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "ledger-firestore-database-id",
			Usage:       "Firestore database, default database when empty",
			Destination: &c.FirestoreDatabase,
			Sources:     cli.EnvVars("CATAPULT_LEDGER_FIRESTORE_DATABASE_ID"),
		},
	}
}

// Build creates the configured run ledger
func (c *Ledger) Build(ctx context.Context) (interfaces.RunLedger, error) {
	switch c.Backend {
	case "", "memory":
		return ledger.NewMemory(), nil

	case "sqlite":
		return ledger.NewSQLite(c.SQLitePath)

	case "firestore":
		if c.FirestoreProject == "" {
			return nil, goerr.New("firestore ledger needs a project ID", goerr.T(types.ErrTagConfig))
		}
		return ledger.NewFirestore(ctx, c.FirestoreProject, c.FirestoreDatabase)

	default:
		return nil, goerr.New("unknown ledger backend",
			goerr.V("backend", c.Backend),
			goerr.T(types.ErrTagConfig))
	}
}
