package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pressly/goose/v3"

	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/db/dsn"
)

const SchemaMigrationTable = "goose_db_schema_version"

var ErrUnsupportedMigration = errors.New("unsupported migration")

type migrateFunc func(ctx context.Context, db *sql.DB, dir string) error

// Migrator runs goose schema migrations. The migration coordinator drives it
// to specific versions: the prepare version adds nullable tenant id columns,
// the tighten version makes them non-nullable.
type Migrator interface {
	MigrateToLatest(ctx context.Context) error
	MigrateTo(ctx context.Context, version int64) error
	MigrateDownTo(ctx context.Context, version int64) error
	CurrentVersion(ctx context.Context) (int64, error)
}

type migrator struct {
	dsn string
	cfg *config.Config
}

func NewMigrator(cfg *config.Config) (Migrator, error) {
	dsn, err := dsn.FromDBConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	return &migrator{
		dsn: dsn,
		cfg: cfg,
	}, nil
}

func (m *migrator) MigrateToLatest(ctx context.Context) error {
	return m.run(ctx, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	})
}

func (m *migrator) MigrateTo(ctx context.Context, version int64) error {
	return m.run(ctx, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.UpToContext(ctx, db, dir, version)
	})
}

func (m *migrator) MigrateDownTo(ctx context.Context, version int64) error {
	return m.run(ctx, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.DownToContext(ctx, db, dir, version)
	})
}

func (m *migrator) CurrentVersion(ctx context.Context) (int64, error) {
	var version int64

	err := m.run(ctx, func(ctx context.Context, db *sql.DB, _ string) error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return err
		}

		version = v

		return nil
	})

	return version, err
}

func (m *migrator) run(ctx context.Context, f migrateFunc) error {
	// "pgx" keeps the module on a single postgres driver; goose maps it to
	// the postgres dialect.
	db, err := goose.OpenDBWithDriver("pgx", m.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetTableName(SchemaMigrationTable)

	return f(ctx, db, m.cfg.Database.Migrator.Schema)
}
