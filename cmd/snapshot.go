package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/snapshot"
)

var createSnapshotCmd = &cobra.Command{
	Use:   "create-snapshot",
	Short: "Create a snapshot of the database",
	Long:  "Create a pg_dump snapshot of the postgres database with a sha256 file next to it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		if cfg.DatabaseConfig.Driver != config.DatabaseDriver_Postgres {
			return fmt.Errorf("snapshots require the postgres driver")
		}

		sink, err := newMetricsSink(cfg, l)
		if err != nil {
			return err
		}

		svc, err := snapshot.NewSnapshotService(snapshot.SnapshotConfigFromConfig(cfg), l, sink)
		if err != nil {
			return err
		}

		if _, err := svc.CreateSnapshot(); err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		return nil
	},
}

var restoreSnapshotCmd = &cobra.Command{
	Use:   "restore-snapshot",
	Short: "Restore the database from a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		if cfg.DatabaseConfig.Driver != config.DatabaseDriver_Postgres {
			return fmt.Errorf("snapshots require the postgres driver")
		}

		snapshotCfg := snapshot.SnapshotConfigFromConfig(cfg)
		snapshotCfg.SkipHashValidation, _ = cmd.Flags().GetBool("skip-hash-validation")

		sink, err := newMetricsSink(cfg, l)
		if err != nil {
			return err
		}

		svc, err := snapshot.NewSnapshotService(snapshotCfg, l, sink)
		if err != nil {
			return err
		}

		if err := svc.RestoreSnapshot(); err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
		return nil
	},
}
