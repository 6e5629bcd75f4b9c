package migrations

import (
	"testing"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_Migrator(t *testing.T) {
	cfg := config.NewDefaultConfig()
	l := zap.NewNop()

	grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(&sqlite.SqliteConfig{Path: sqlite.SqliteInMemoryPath}), l)
	require.Nil(t, err)
	db, err := grm.DB()
	require.Nil(t, err)

	migrator := NewMigrator(db, grm, l, cfg)

	t.Run("Runs all migrations", func(t *testing.T) {
		require.Nil(t, migrator.MigrateAll())

		var count int64
		grm.Model(&Migrations{}).Count(&count)
		assert.Equal(t, int64(len(migrator.Migrations())), count)

		for _, table := range []string{"users", "stakes", "transactions", "rewards", "referral_rewards", "staking_settings"} {
			assert.True(t, grm.Migrator().HasTable(table), table)
		}
	})

	t.Run("Records when each migration ran", func(t *testing.T) {
		var records []*Migrations
		res := grm.Model(&Migrations{}).Order("name asc").Find(&records)
		require.Nil(t, res.Error)
		require.Len(t, records, len(migrator.Migrations()))

		assert.Equal(t, migrator.Migrations()[0].GetName(), records[0].Name)
		for _, r := range records {
			assert.False(t, r.CreatedAt.IsZero(), r.Name)
			assert.Nil(t, r.UpdatedAt, r.Name)
		}
	})

	t.Run("Running again is a no-op", func(t *testing.T) {
		require.Nil(t, migrator.MigrateAll())

		var count int64
		grm.Model(&Migrations{}).Count(&count)
		assert.Equal(t, int64(len(migrator.Migrations())), count)
	})
}
