package ledgerExport

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/internal/tests"
	"github.com/stakewell/stakedash/internal/tests/sqlite"
	"github.com/stakewell/stakedash/pkg/storage"
	storagePostgres "github.com/stakewell/stakedash/pkg/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, storage.StakingStore, *zap.Logger) {
	cfg := tests.GetConfig()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)
	grm, err := sqlite.GetMigratedInMemoryDatabase(l, cfg)
	require.Nil(t, err)
	return grm, storagePostgres.NewPostgresStakingStore(grm, l, cfg), l
}

func seedLedger(t *testing.T, grm *gorm.DB, store storage.StakingStore) *storage.User {
	ctx := context.Background()
	user, err := store.CreateUser(ctx, &storage.User{Email: "alice@example.com", PasswordHash: "hash", ReferralCode: "ALICE001"})
	require.Nil(t, err)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, err = store.CreateStake(ctx, user.Id, "ETH", decimal.NewFromInt(5), at)
	require.Nil(t, err)
	_, err = sqlite.SeedTransaction(grm, &storage.Transaction{
		UserId:    user.Id,
		Type:      storage.TransactionType_Reward,
		Coin:      "ETH",
		Amount:    decimal.RequireFromString("0.125"),
		CreatedAt: at.Add(time.Hour),
	})
	require.Nil(t, err)
	_, err = sqlite.SeedTransaction(grm, &storage.Transaction{
		UserId:    user.Id,
		Type:      storage.TransactionType_Withdraw,
		Coin:      "ETH",
		Amount:    decimal.RequireFromString("0.1"),
		Status:    storage.TransactionStatus_Pending,
		CreatedAt: at.Add(2 * time.Hour),
	})
	require.Nil(t, err)
	return user
}

func readCsv(t *testing.T, data []byte) [][]string {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.Nil(t, err)
	return records
}

func Test_Export(t *testing.T) {
	t.Run("Exports completed rows with a header", func(t *testing.T) {
		grm, store, l := setup(t)
		seedLedger(t, grm, store)

		var out bytes.Buffer
		var progress bytes.Buffer
		res, err := NewExporter(store, l).Export(context.Background(), &out, &ExportOptions{BatchSize: 1, Progress: &progress})
		require.Nil(t, err)
		assert.Equal(t, 2, res.Exported)
		assert.Equal(t, 1, res.Skipped)
		assert.NotZero(t, progress.Len())

		records := readCsv(t, out.Bytes())
		require.Len(t, records, 3)
		assert.Equal(t, []string{"id", "user_id", "type", "coin", "amount", "principal_amount", "status", "counterparty_id", "created_at"}, records[0])
		assert.Equal(t, "stake", records[1][2])
		assert.Equal(t, "5", records[1][4])
		assert.Equal(t, "reward", records[2][2])
		assert.Equal(t, "0.125", records[2][4])
		assert.Equal(t, "2025-01-01T01:00:00Z", records[2][8])
	})

	t.Run("IncludeIncomplete exports pending rows", func(t *testing.T) {
		grm, store, l := setup(t)
		seedLedger(t, grm, store)

		var out bytes.Buffer
		res, err := NewExporter(store, l).Export(context.Background(), &out, &ExportOptions{IncludeIncomplete: true})
		require.Nil(t, err)
		assert.Equal(t, 3, res.Exported)
		assert.Len(t, readCsv(t, out.Bytes()), 4)
	})

	t.Run("Empty ledger still writes the header", func(t *testing.T) {
		_, store, l := setup(t)

		var out bytes.Buffer
		res, err := NewExporter(store, l).Export(context.Background(), &out, nil)
		require.Nil(t, err)
		assert.Equal(t, 0, res.Exported)
		records := readCsv(t, out.Bytes())
		require.Len(t, records, 1)
		assert.Equal(t, "id", records[0][0])
	})

	t.Run("ExportToFile", func(t *testing.T) {
		grm, store, l := setup(t)
		seedLedger(t, grm, store)

		path := filepath.Join(t.TempDir(), "ledger.csv")
		res, err := NewExporter(store, l).ExportToFile(context.Background(), path, nil)
		require.Nil(t, err)
		assert.Equal(t, 2, res.Exported)

		data, err := os.ReadFile(path)
		require.Nil(t, err)
		assert.Len(t, readCsv(t, data), 3)
	})
}

func Test_NewLedgerRow(t *testing.T) {
	counterparty := uint64(7)
	row := NewLedgerRow(&storage.Transaction{
		Id:              3,
		UserId:          2,
		Type:            storage.TransactionType_WithdrawAll,
		Coin:            "ETH",
		Amount:          decimal.RequireFromString("4.3"),
		PrincipalAmount: decimal.NewNullDecimal(decimal.NewFromInt(4)),
		Status:          storage.TransactionStatus_Completed,
		CounterpartyId:  &counterparty,
		CreatedAt:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("x", 3600)),
	})
	assert.Equal(t, "4.3", row.Amount)
	assert.Equal(t, "4", row.PrincipalAmount)
	assert.Equal(t, "7", row.CounterpartyId)
	assert.Equal(t, "2025-06-01T11:00:00Z", row.CreatedAt)
}
