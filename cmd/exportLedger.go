package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/ledgerExport"
	"go.uber.org/zap"
)

var exportLedgerCmd = &cobra.Command{
	Use:   "export-ledger",
	Short: "Export the transaction ledger as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		includeIncomplete, _ := cmd.Flags().GetBool("include-incomplete")

		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		s, err := newStack(cfg, l)
		if err != nil {
			return err
		}
		defer s.Close()

		exporter := ledgerExport.NewExporter(s.store, l)
		opts := &ledgerExport.ExportOptions{IncludeIncomplete: includeIncomplete}

		var res *ledgerExport.ExportResult
		if cfg.ExportConfig.OutputFile == "" {
			res, err = exporter.Export(context.Background(), cmd.OutOrStdout(), opts)
		} else {
			opts.Progress = os.Stderr
			res, err = exporter.ExportToFile(context.Background(), cfg.ExportConfig.OutputFile, opts)
		}
		if err != nil {
			l.Sugar().Errorw("Ledger export failed", zap.Error(err))
			return err
		}
		l.Sugar().Infow("Ledger export complete", zap.Int("rows", res.Exported), zap.String("outputFile", cfg.ExportConfig.OutputFile))
		return nil
	},
}
