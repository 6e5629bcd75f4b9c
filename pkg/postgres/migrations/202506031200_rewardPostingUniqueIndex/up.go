package _202506031200_rewardPostingUniqueIndex

import (
	"database/sql"
	"fmt"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/postgres/helpers"
	"gorm.io/gorm"
)

type Migration struct {
}

// Up adds the posting window to transactions. Reward rows carry floor(tick / interval) and the
// unique index guarantees one posting per user, type and window. Other rows leave it null.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	t := helpers.GetColumnTypes(grm)

	queries := []string{
		fmt.Sprintf(`ALTER TABLE transactions ADD COLUMN posting_bucket %s default null`, t.BigInt),
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_transactions_posting_bucket ON transactions (user_id, type, posting_bucket)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return fmt.Errorf("failed to run query: %s\n\n%w", query, res.Error)
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202506031200_rewardPostingUniqueIndex"
}
