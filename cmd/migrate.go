package cmd

import (
	"github.com/spf13/cobra"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}

		db, err := database.OpenAndMigrate(cfg, l)
		if err != nil {
			l.Sugar().Errorw("Migration failed", "error", err)
			return err
		}
		defer db.Close()

		l.Sugar().Infow("Database is up to date")
		return nil
	},
}
