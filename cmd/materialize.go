package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/rewardsCalculatorQueue"
	"go.uber.org/zap"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Run a single rewards materialization tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		tickTime, err := parseTimeFlag(cmd, "tick-time")
		if err != nil {
			return err
		}

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		s, err := newStack(cfg, l)
		if err != nil {
			return err
		}
		defer s.Close()

		rcq := rewardsCalculatorQueue.NewRewardsCalculatorQueue(s.rewardsCalculator, l)
		go rcq.Process()
		defer rcq.Close()

		res, err := rcq.EnqueueAndWait(context.Background(), rewardsCalculatorQueue.RewardsCalculationData{
			CalculationType: rewardsCalculatorQueue.RewardsCalculationType_Materialize,
			TickTime:        tickTime,
			Source:          "cli",
		})
		if err != nil {
			l.Sugar().Errorw("Materialization failed", zap.Error(err))
			return err
		}
		return printJSON(cmd, res.Materialized)
	},
}

var adminReportCmd = &cobra.Command{
	Use:   "admin-report",
	Short: "Print the operator's APY spread earnings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		asOf, err := parseTimeFlag(cmd, "as-of")
		if err != nil {
			return err
		}
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		s, err := newStack(cfg, l)
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := s.rewardsCalculator.AdminRewards(context.Background(), asOf)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

func parseTimeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil || raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be an RFC3339 timestamp: %w", name, err)
	}
	return t.UTC(), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
