// Package database opens the configured driver and applies migrations.
package database

import (
	"database/sql"
	"fmt"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/postgres"
	"github.com/stakewell/stakedash/pkg/postgres/migrations"
	"github.com/stakewell/stakedash/pkg/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Database struct {
	Driver config.DatabaseDriver
	Db     *sql.DB
	Grm    *gorm.DB
}

// Open connects to postgres or sqlite depending on database.driver. Postgres databases are
// created when missing.
func Open(cfg *config.Config, l *zap.Logger) (*Database, error) {
	switch cfg.DatabaseConfig.Driver {
	case config.DatabaseDriver_Sqlite:
		path := cfg.DatabaseConfig.SqlitePath
		if path == "" {
			path = sqlite.SqliteInMemoryPath
		}
		grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(&sqlite.SqliteConfig{Path: path}), l)
		if err != nil {
			return nil, err
		}
		db, err := grm.DB()
		if err != nil {
			return nil, err
		}
		l.Sugar().Infow("Opened sqlite database", zap.String("path", path))
		return &Database{Driver: config.DatabaseDriver_Sqlite, Db: db, Grm: grm}, nil

	case config.DatabaseDriver_Postgres:
		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to setup postgres connection: %w", err)
		}
		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			return nil, fmt.Errorf("failed to create gorm instance: %w", err)
		}
		l.Sugar().Infow("Opened postgres database",
			zap.String("host", cfg.DatabaseConfig.Host),
			zap.String("db", cfg.DatabaseConfig.DbName),
		)
		return &Database{Driver: config.DatabaseDriver_Postgres, Db: pg.Db, Grm: grm}, nil
	}
	return nil, fmt.Errorf("unsupported database driver '%s'", cfg.DatabaseConfig.Driver)
}

func (d *Database) Migrate(cfg *config.Config, l *zap.Logger) error {
	migrator := migrations.NewMigrator(d.Db, d.Grm, l, cfg)
	if err := migrator.MigrateAll(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// OpenAndMigrate is what every command that touches the database starts with.
func OpenAndMigrate(cfg *config.Config, l *zap.Logger) (*Database, error) {
	d, err := Open(cfg, l)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(cfg, l); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) Close() error {
	if d.Db == nil {
		return nil
	}
	return d.Db.Close()
}
