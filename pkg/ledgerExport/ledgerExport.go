// Package ledgerExport writes the transaction ledger to CSV for accounting.
package ledgerExport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
)

const DefaultBatchSize = 1000

type LedgerRow struct {
	Id              uint64 `csv:"id"`
	UserId          uint64 `csv:"user_id"`
	Type            string `csv:"type"`
	Coin            string `csv:"coin"`
	Amount          string `csv:"amount"`
	PrincipalAmount string `csv:"principal_amount"`
	Status          string `csv:"status"`
	CounterpartyId  string `csv:"counterparty_id"`
	CreatedAt       string `csv:"created_at"`
}

func NewLedgerRow(tx *storage.Transaction) *LedgerRow {
	row := &LedgerRow{
		Id:        tx.Id,
		UserId:    tx.UserId,
		Type:      string(tx.Type),
		Coin:      tx.Coin,
		Amount:    tx.Amount.String(),
		Status:    string(tx.Status),
		CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339),
	}
	if tx.PrincipalAmount.Valid {
		row.PrincipalAmount = tx.PrincipalAmount.Decimal.String()
	}
	if tx.CounterpartyId != nil {
		row.CounterpartyId = strconv.FormatUint(*tx.CounterpartyId, 10)
	}
	return row
}

type ExportOptions struct {
	// IncludeIncomplete also exports pending and failed rows.
	IncludeIncomplete bool
	BatchSize         int
	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
}

type ExportResult struct {
	Exported int
	Skipped  int
}

type Exporter struct {
	store  storage.StakingStore
	logger *zap.Logger
}

func NewExporter(store storage.StakingStore, l *zap.Logger) *Exporter {
	return &Exporter{store: store, logger: l}
}

// Export streams the ledger in id order to out. The header row is always written.
func (e *Exporter) Export(ctx context.Context, out io.Writer, opts *ExportOptions) (*ExportResult, error) {
	if opts == nil {
		opts = &ExportOptions{}
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total, err := e.store.CountLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger: %w", err)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("exporting ledger"),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprintln(opts.Progress)
			}),
		)
	}

	writer := gocsv.NewSafeCSVWriter(csv.NewWriter(out))
	result := &ExportResult{}
	headerWritten := false

	err = e.store.IterateLedger(ctx, batchSize, func(batch []*storage.Transaction) error {
		rows := make([]*LedgerRow, 0, len(batch))
		for _, tx := range batch {
			if !opts.IncludeIncomplete && tx.Status != storage.TransactionStatus_Completed {
				result.Skipped++
				continue
			}
			rows = append(rows, NewLedgerRow(tx))
		}
		if bar != nil {
			_ = bar.Add(len(batch))
		}
		if len(rows) == 0 {
			return nil
		}
		var err error
		if headerWritten {
			err = gocsv.MarshalCSVWithoutHeaders(rows, writer)
		} else {
			err = gocsv.MarshalCSV(rows, writer)
			headerWritten = true
		}
		if err != nil {
			return fmt.Errorf("failed to write ledger rows: %w", err)
		}
		result.Exported += len(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !headerWritten {
		if err := gocsv.MarshalCSV([]*LedgerRow{}, writer); err != nil {
			return nil, fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	e.logger.Sugar().Infow("Exported ledger",
		zap.Int("exported", result.Exported),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ExportToFile writes the CSV to path, replacing any existing file.
func (e *Exporter) ExportToFile(ctx context.Context, path string, opts *ExportOptions) (*ExportResult, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer file.Close()

	res, err := e.Export(ctx, file, opts)
	if err != nil {
		return nil, err
	}
	return res, file.Sync()
}
