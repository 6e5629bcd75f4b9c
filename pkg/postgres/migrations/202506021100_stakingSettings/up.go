package _202506021100_stakingSettings

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

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS staking_settings (
		name varchar(64) primary key,
		value varchar not null,
		updated_at %s not null default current_timestamp
	)`, t.Timestamp)

	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202506021100_stakingSettings"
}
