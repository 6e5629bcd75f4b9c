package helpers

import (
	"errors"
	"testing"

	"github.com/stakewell/stakedash/pkg/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Test_Helpers(t *testing.T) {
	grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(&sqlite.SqliteConfig{Path: sqlite.SqliteInMemoryPath}), zap.NewNop())
	require.Nil(t, err)
	require.Nil(t, grm.Exec(`create table things (name text not null)`).Error)

	countThings := func() int64 {
		var count int64
		grm.Raw(`select count(*) from things`).Scan(&count)
		return count
	}

	t.Run("Commits on success", func(t *testing.T) {
		_, err := WrapTxAndCommit(func(tx *gorm.DB) (bool, error) {
			return true, tx.Exec(`insert into things (name) values ('a')`).Error
		}, grm, nil)
		assert.Nil(t, err)
		assert.Equal(t, int64(1), countThings())
	})

	t.Run("Rolls back on error", func(t *testing.T) {
		_, err := WrapTxAndCommit(func(tx *gorm.DB) (bool, error) {
			if res := tx.Exec(`insert into things (name) values ('b')`); res.Error != nil {
				return false, res.Error
			}
			return false, errors.New("boom")
		}, grm, nil)
		assert.NotNil(t, err)
		assert.Equal(t, int64(1), countThings())
	})

	t.Run("Column types follow the dialect", func(t *testing.T) {
		assert.False(t, IsPostgres(grm))
		assert.Equal(t, "text", GetColumnTypes(grm).Decimal)
	})
}
