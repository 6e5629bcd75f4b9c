package _202506010930_rewardTables

import (
	"database/sql"
	"fmt"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/postgres/helpers"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	t := helpers.GetColumnTypes(grm)

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rewards (
			id %s,
			user_id %s not null references users(id) on delete cascade,
			transaction_id %s not null references transactions(id) on delete cascade,
			amount %s not null,
			principal_amount %s not null,
			apy_percent %s not null,
			interval_seconds %s not null,
			created_at %s not null default current_timestamp
		)`, t.PrimaryKey, t.ForeignKey, t.ForeignKey, t.Decimal, t.Decimal, t.Decimal, t.BigInt, t.Timestamp),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rewards_transaction_id ON rewards (transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_user_id ON rewards (user_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS referral_rewards (
			id %s,
			referrer_id %s not null references users(id) on delete cascade,
			referee_id %s not null references users(id) on delete cascade,
			transaction_id %s not null references transactions(id) on delete cascade,
			source_transaction_id %s not null references transactions(id) on delete cascade,
			amount %s not null,
			created_at %s not null default current_timestamp
		)`, t.PrimaryKey, t.ForeignKey, t.ForeignKey, t.ForeignKey, t.ForeignKey, t.Decimal, t.Timestamp),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_referral_rewards_source ON referral_rewards (source_transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_referral_rewards_referrer ON referral_rewards (referrer_id)`,
	}

	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return fmt.Errorf("failed to run query: %s\n\n%w", query, res.Error)
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202506010930_rewardTables"
}
