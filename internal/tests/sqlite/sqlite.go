package sqlite

import (
	"time"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/postgres/migrations"
	"github.com/stakewell/stakedash/pkg/sqlite"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func GetInMemorySqliteDatabaseConnection(l *zap.Logger) (*gorm.DB, error) {
	return sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(&sqlite.SqliteConfig{
		Path: sqlite.SqliteInMemoryPath,
	}), l)
}

// GetMigratedInMemoryDatabase returns a fresh in-memory database with every migration applied.
func GetMigratedInMemoryDatabase(l *zap.Logger, cfg *config.Config) (*gorm.DB, error) {
	grm, err := GetInMemorySqliteDatabaseConnection(l)
	if err != nil {
		return nil, err
	}
	db, err := grm.DB()
	if err != nil {
		return nil, err
	}
	if err := migrations.NewMigrator(db, grm, l, cfg).MigrateAll(); err != nil {
		return nil, err
	}
	return grm, nil
}

// SeedTransaction writes a ledger row directly, bypassing the balance checks of the store.
// Status defaults to completed and CreatedAt to now.
func SeedTransaction(grm *gorm.DB, t *storage.Transaction) (*storage.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.Status == "" {
		t.Status = storage.TransactionStatus_Completed
	}
	if res := grm.Create(t); res.Error != nil {
		return nil, res.Error
	}
	return t, nil
}
