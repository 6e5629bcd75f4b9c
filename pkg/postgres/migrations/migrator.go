package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/postgres/helpers"
	_202506010900_bootstrapDb "github.com/stakewell/stakedash/pkg/postgres/migrations/202506010900_bootstrapDb"
	_202506010930_rewardTables "github.com/stakewell/stakedash/pkg/postgres/migrations/202506010930_rewardTables"
	_202506021100_stakingSettings "github.com/stakewell/stakedash/pkg/postgres/migrations/202506021100_stakingSettings"
	_202506031200_rewardPostingUniqueIndex "github.com/stakewell/stakedash/pkg/postgres/migrations/202506031200_rewardPostingUniqueIndex"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	if err := createMigrationsTable(gDb); err != nil {
		l.Sugar().Fatalw("Failed to create migrations table", "error", err)
	}
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

func (m *Migrator) Migrations() []Migration {
	return []Migration{
		&_202506010900_bootstrapDb.Migration{},
		&_202506010930_rewardTables.Migration{},
		&_202506021100_stakingSettings.Migration{},
		&_202506031200_rewardPostingUniqueIndex.Migration{},
	}
}

func (m *Migrator) MigrateAll() error {
	for _, migration := range m.Migrations() {
		if err := m.Migrate(migration); err != nil {
			return fmt.Errorf("failed to run migration '%s': %w", migration.GetName(), err)
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	// find migration by name
	var migrationRecord Migrations
	result := m.GDb.Find(&migrationRecord, "name = ?", name).Limit(1)

	if result.Error == nil && result.RowsAffected == 0 {
		m.Logger.Sugar().Infof("Running migration '%s'", name)
		err := migration.Up(m.Db, m.GDb, m.globalConfig)
		if err != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to run migration '%s'", name), zap.Error(err))
			return err
		}

		migrationRecord = Migrations{
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		result = m.GDb.Create(&migrationRecord)
		if result.Error != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to record migration '%s'", name), zap.Error(result.Error))
			return result.Error
		}
	} else if result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to find migration '%s'", name), zap.Error(result.Error))
		return result.Error
	} else if result.RowsAffected > 0 {
		m.Logger.Sugar().Debugf("Migration %s already run", name)
		return nil
	}
	return nil
}

// createMigrationsTable creates the bookkeeping table with the timestamp type of the current
// dialect. sqlite only scans columns declared as datetime back into time.Time.
func createMigrationsTable(grm *gorm.DB) error {
	t := helpers.GetColumnTypes(grm)
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS migrations (
		name text primary key,
		created_at %s default current_timestamp,
		updated_at %s default null
	)`, t.Timestamp, t.Timestamp)
	return grm.Exec(query).Error
}

type Migrations struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt *time.Time
}
