package db

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Connect opens the Postgres pool and applies pending migrations.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect db")
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
            version TEXT PRIMARY KEY,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return errors.Wrap(err, "ensure schema_migrations")
	}

	versions, err := migrationVersions()
	if err != nil {
		return err
	}

	for _, version := range versions {
		var applied bool
		if err := db.GetContext(ctx, &applied, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version); err != nil {
			return errors.Wrapf(err, "check migration %s", version)
		}
		if applied {
			continue
		}

		contents, err := migrationFiles.ReadFile("migrations/" + version)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", version)
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Wrapf(err, "begin migration %s", version)
		}
		if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "execute migration %s", version)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "record migration %s", version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %s", version)
		}
		log.Info("migration applied", "version", version)
	}

	log.Info("database migrations up to date", "count", len(versions))
	return nil
}

func migrationVersions() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	var versions []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		versions = append(versions, entry.Name())
	}
	sort.Strings(versions)
	return versions, nil
}
