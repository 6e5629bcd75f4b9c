package sqlite

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const SqliteInMemoryPath = ":memory:"

type SqliteConfig struct {
	Path string
}

func NewSqlite(cfg *SqliteConfig) gorm.Dialector {
	return sqlite.Open(cfg.Path)
}

// NewGormSqliteFromSqlite opens the database on a single connection. An in-memory database
// only lives as long as its connection, and sqlite serializes writers anyway.
func NewGormSqliteFromSqlite(dialector gorm.Dialector, l *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	rawDb, err := db.DB()
	if err != nil {
		return nil, err
	}
	rawDb.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	}
	for _, pragma := range pragmas {
		if res := db.Exec(pragma); res.Error != nil {
			l.Sugar().Errorw("Failed to apply pragma", "pragma", pragma, zap.Error(res.Error))
			return nil, res.Error
		}
	}
	return db, nil
}
