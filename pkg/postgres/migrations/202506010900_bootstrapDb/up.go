package _202506010900_bootstrapDb

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
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			email varchar(320) not null,
			password_hash varchar not null,
			wallet_address varchar default null,
			referrer_id %s default null references users(id) on delete set null,
			referral_code varchar(64) not null,
			is_admin %s not null default false,
			created_at %s not null default current_timestamp,
			updated_at %s default null
		)`, t.PrimaryKey, t.ForeignKey, t.Boolean, t.Timestamp, t.Timestamp),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_referral_code ON users (referral_code)`,
		`CREATE INDEX IF NOT EXISTS idx_users_referrer_id ON users (referrer_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stakes (
			id %s,
			user_id %s not null references users(id) on delete cascade,
			coin varchar(16) not null,
			amount %s not null,
			status varchar(16) not null,
			created_at %s not null default current_timestamp,
			updated_at %s default null
		)`, t.PrimaryKey, t.ForeignKey, t.Decimal, t.Timestamp, t.Timestamp),
		`CREATE INDEX IF NOT EXISTS idx_stakes_user_status ON stakes (user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_stakes_status ON stakes (status)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS transactions (
			id %s,
			user_id %s not null references users(id) on delete cascade,
			type varchar(32) not null,
			coin varchar(16) not null,
			amount %s not null,
			principal_amount %s default null,
			status varchar(16) not null,
			counterparty_id %s default null references users(id) on delete set null,
			created_at %s not null default current_timestamp,
			updated_at %s default null
		)`, t.PrimaryKey, t.ForeignKey, t.Decimal, t.Decimal, t.ForeignKey, t.Timestamp, t.Timestamp),
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_type ON transactions (user_id, type)`,
	}

	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return fmt.Errorf("failed to run query: %s\n\n%w", query, res.Error)
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202506010900_bootstrapDb"
}
