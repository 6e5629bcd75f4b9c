package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/internal/tests"
	"github.com/stakewell/stakedash/internal/tests/sqlite"
	pg "github.com/stakewell/stakedash/pkg/postgres"
	"github.com/stakewell/stakedash/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (*gorm.DB, *zap.Logger, *config.Config, error) {
	cfg := tests.GetConfig()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		return nil, nil, nil, err
	}
	grm, err := sqlite.GetMigratedInMemoryDatabase(l, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return grm, l, cfg, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createUser(t *testing.T, store *PostgresStakingStore, email string, code string, referrerId *uint64) *storage.User {
	u, err := store.CreateUser(context.Background(), &storage.User{
		Email:        email,
		PasswordHash: "hash",
		ReferralCode: code,
		ReferrerId:   referrerId,
	})
	require.Nil(t, err)
	return u
}

func Test_PostgresStakingStore(t *testing.T) {
	grm, l, cfg, err := setup()
	require.Nil(t, err)

	store := NewPostgresStakingStore(grm, l, cfg)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	alice := createUser(t, store, "Alice@Example.com", "alice-code", nil)
	bob := createUser(t, store, "bob@example.com", "bob-code", &alice.Id)

	t.Run("Users", func(t *testing.T) {
		t.Run("Lookup by email is case insensitive", func(t *testing.T) {
			u, err := store.GetUserByEmail(ctx, "ALICE@example.com")
			require.Nil(t, err)
			assert.Equal(t, alice.Id, u.Id)
		})
		t.Run("Duplicate email", func(t *testing.T) {
			_, err := store.CreateUser(ctx, &storage.User{Email: "alice@example.com", PasswordHash: "x", ReferralCode: "other"})
			assert.True(t, errors.Is(err, storage.ErrDuplicate))
		})
		t.Run("Referral code lookup", func(t *testing.T) {
			u, err := store.GetUserByReferralCode(ctx, "bob-code")
			require.Nil(t, err)
			assert.Equal(t, bob.Id, u.Id)
			assert.Equal(t, alice.Id, *u.ReferrerId)
		})
		t.Run("Unknown user", func(t *testing.T) {
			_, err := store.GetUserById(ctx, 9999)
			assert.True(t, errors.Is(err, storage.ErrNotFound))
		})
		t.Run("Wallet address", func(t *testing.T) {
			u, err := store.SetWalletAddress(ctx, alice.Id, "0xabc")
			require.Nil(t, err)
			assert.Equal(t, "0xabc", *u.WalletAddress)

			_, err = store.SetWalletAddress(ctx, 9999, "0xabc")
			assert.True(t, errors.Is(err, storage.ErrNotFound))
		})
	})

	t.Run("Stakes", func(t *testing.T) {
		_, stakeTx, err := store.CreateStake(ctx, bob.Id, "ETH", d("4"), t0)
		require.Nil(t, err)
		assert.Equal(t, storage.TransactionType_Stake, stakeTx.Type)
		_, _, err = store.CreateStake(ctx, bob.Id, "ETH", d("6"), t0.Add(time.Hour))
		require.Nil(t, err)

		totals, err := store.ListActiveStakeTotals(ctx)
		require.Nil(t, err)
		require.Equal(t, 1, len(totals))
		assert.Equal(t, bob.Id, totals[0].UserId)
		assert.True(t, d("10").Equal(totals[0].Total))
		assert.Equal(t, alice.Id, *totals[0].ReferrerId)
		assert.Equal(t, 2, totals[0].StakeCount)
		assert.True(t, totals[0].EarliestStakeAt.Equal(t0))

		t.Run("Unstake reduces newest stakes first", func(t *testing.T) {
			_, err := store.Unstake(ctx, bob.Id, "ETH", d("7"), t0.Add(2*time.Hour))
			require.Nil(t, err)

			stakes, err := store.ListActiveStakes(ctx, bob.Id)
			require.Nil(t, err)
			require.Equal(t, 1, len(stakes))
			assert.True(t, d("3").Equal(stakes[0].Amount))
			assert.True(t, stakes[0].CreatedAt.Equal(t0))
		})

		t.Run("Unstake more than staked", func(t *testing.T) {
			_, err := store.Unstake(ctx, bob.Id, "ETH", d("100"), t0.Add(2*time.Hour))
			assert.True(t, errors.Is(err, storage.ErrInsufficientBalance))
		})
	})

	t.Run("Rewards", func(t *testing.T) {
		posting := &storage.RewardPosting{
			UserId:          bob.Id,
			Coin:            "ETH",
			Amount:          d("0.0000001"),
			PrincipalAmount: d("3"),
			ApyPercent:      d("3"),
			IntervalSeconds: 60,
			PostingBucket:   t0.Add(3*time.Hour).Unix() / 60,
			PostedAt:        t0.Add(3 * time.Hour),
			ReferrerId:      &alice.Id,
			ReferralAmount:  d("0.000000001"),
		}

		t.Run("Posts reward with referral", func(t *testing.T) {
			posted, err := store.PostReward(ctx, posting)
			require.Nil(t, err)
			assert.NotNil(t, posted.Reward)
			require.NotNil(t, posted.ReferralReward)
			assert.Equal(t, posted.Transaction.Id, posted.ReferralReward.SourceTransactionId)

			referrals, err := store.ListTransactions(ctx, &storage.TransactionFilter{
				UserId: alice.Id,
				Types:  []storage.TransactionType{storage.TransactionType_ReferralReward},
			})
			require.Nil(t, err)
			require.Equal(t, 1, len(referrals))
			assert.True(t, d("0.000000001").Equal(referrals[0].Amount))
		})

		t.Run("Second posting in the same window is rejected", func(t *testing.T) {
			_, err := store.PostReward(ctx, posting)
			assert.True(t, errors.Is(err, storage.ErrAlreadyPosted))

			exists, err := store.HasRewardInBucket(ctx, bob.Id, posting.PostingBucket)
			require.Nil(t, err)
			assert.True(t, exists)
		})

		t.Run("Unique index rejects a direct duplicate insert", func(t *testing.T) {
			bucket := posting.PostingBucket
			_, err := sqlite.SeedTransaction(grm, &storage.Transaction{
				UserId:        bob.Id,
				Type:          storage.TransactionType_Reward,
				Coin:          "ETH",
				Amount:        d("1"),
				PostingBucket: &bucket,
			})
			assert.True(t, pg.IsDuplicateKeyError(err), err)
		})

		t.Run("Concurrent postings produce one row", func(t *testing.T) {
			p := *posting
			p.PostingBucket++
			p.ReferrerId = nil

			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = store.PostReward(ctx, &p)
				}()
			}
			wg.Wait()

			txs, err := store.ListTransactions(ctx, &storage.TransactionFilter{
				UserId: bob.Id,
				Types:  []storage.TransactionType{storage.TransactionType_Reward},
			})
			require.Nil(t, err)
			assert.Equal(t, 2, len(txs))
		})
	})

	t.Run("Balance mutations", func(t *testing.T) {
		carol := createUser(t, store, "carol@example.com", "carol-code", nil)
		_, err := sqlite.SeedTransaction(grm, &storage.Transaction{
			UserId: carol.Id, Type: storage.TransactionType_Reward, Coin: "ETH", Amount: d("1"), CreatedAt: t0,
		})
		require.Nil(t, err)
		_, _, err = store.CreateStake(ctx, carol.Id, "ETH", d("2"), t0)
		require.Nil(t, err)

		_, err = store.Withdraw(ctx, carol.Id, "ETH", d("5"), t0.Add(time.Minute))
		assert.True(t, errors.Is(err, storage.ErrInsufficientBalance))

		_, err = store.Withdraw(ctx, carol.Id, "ETH", d("0.25"), t0.Add(time.Minute))
		require.Nil(t, err)

		_, err = store.Transfer(ctx, carol.Id, alice.Id, "ETH", d("0.25"), t0.Add(2*time.Minute))
		require.Nil(t, err)

		_, err = store.Transfer(ctx, carol.Id, 9999, "ETH", d("0.1"), t0.Add(2*time.Minute))
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		all, err := store.WithdrawAll(ctx, carol.Id, "ETH", t0.Add(3*time.Minute))
		require.Nil(t, err)
		assert.True(t, d("2.5").Equal(all.Amount), all.Amount.String())
		assert.True(t, d("2").Equal(all.PrincipalAmount.Decimal))

		stakes, err := store.ListActiveStakes(ctx, carol.Id)
		require.Nil(t, err)
		assert.Equal(t, 0, len(stakes))

		txs, err := store.ListTransactions(ctx, &storage.TransactionFilter{UserId: carol.Id})
		require.Nil(t, err)
		summary := storage.SummarizeLedger(txs)
		assert.True(t, summary.Available.IsZero(), summary.Available.String())
		assert.True(t, summary.Principal.IsZero())

		_, err = store.WithdrawAll(ctx, carol.Id, "ETH", t0.Add(4*time.Minute))
		assert.True(t, errors.Is(err, storage.ErrInsufficientBalance))
	})

	t.Run("Withdraw all keeps stakes in other coins", func(t *testing.T) {
		dave := createUser(t, store, "dave@example.com", "dave-code", nil)
		_, _, err := store.CreateStake(ctx, dave.Id, "ETH", d("3"), t0)
		require.Nil(t, err)
		_, _, err = store.CreateStake(ctx, dave.Id, "SOL", d("7"), t0)
		require.Nil(t, err)

		all, err := store.WithdrawAll(ctx, dave.Id, "ETH", t0.Add(time.Minute))
		require.Nil(t, err)
		assert.True(t, d("3").Equal(all.PrincipalAmount.Decimal), all.PrincipalAmount.Decimal.String())

		stakes, err := store.ListActiveStakes(ctx, dave.Id)
		require.Nil(t, err)
		require.Equal(t, 1, len(stakes))
		assert.Equal(t, "SOL", stakes[0].Coin)
		assert.True(t, d("7").Equal(stakes[0].Amount))

		txs, err := store.ListTransactions(ctx, &storage.TransactionFilter{UserId: dave.Id})
		require.Nil(t, err)
		assert.True(t, d("7").Equal(storage.SummarizeLedger(txs).Principal))
	})

	t.Run("Transactions filter", func(t *testing.T) {
		after := t0.Add(90 * time.Minute)
		txs, err := store.ListTransactions(ctx, &storage.TransactionFilter{
			UserId:       bob.Id,
			CreatedAfter: &after,
			Ascending:    true,
		})
		require.Nil(t, err)
		for _, tx := range txs {
			assert.True(t, tx.CreatedAt.After(after))
		}
		assert.True(t, len(txs) > 0)
	})

	t.Run("Settings", func(t *testing.T) {
		_, err := store.GetSetting(ctx, storage.Setting_DisplayedApy)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		_, err = store.PutSetting(ctx, storage.Setting_DisplayedApy, "3.25")
		require.Nil(t, err)
		_, err = store.PutSetting(ctx, storage.Setting_DisplayedApy, "3.5")
		require.Nil(t, err)

		s, err := store.GetSetting(ctx, storage.Setting_DisplayedApy)
		require.Nil(t, err)
		assert.Equal(t, "3.5", s.Value)

		all, err := store.ListSettings(ctx)
		require.Nil(t, err)
		assert.Equal(t, 1, len(all))
	})

	t.Run("Ledger iteration", func(t *testing.T) {
		count, err := store.CountLedger(ctx)
		require.Nil(t, err)

		seen := 0
		var lastId uint64
		err = store.IterateLedger(ctx, 2, func(batch []*storage.Transaction) error {
			for _, tx := range batch {
				assert.True(t, tx.Id > lastId)
				lastId = tx.Id
			}
			seen += len(batch)
			return nil
		})
		require.Nil(t, err)
		assert.Equal(t, int(count), seen)
	})

	t.Run("Delete user cascades", func(t *testing.T) {
		require.Nil(t, store.DeleteUser(ctx, alice.Id))

		_, err := store.GetUserById(ctx, alice.Id)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		u, err := store.GetUserById(ctx, bob.Id)
		require.Nil(t, err)
		assert.Nil(t, u.ReferrerId)

		txs, err := store.ListTransactions(ctx, &storage.TransactionFilter{UserId: alice.Id})
		require.Nil(t, err)
		assert.Equal(t, 0, len(txs))

		var referralRows int64
		grm.Model(&storage.ReferralReward{}).Count(&referralRows)
		assert.Equal(t, int64(0), referralRows)

		assert.True(t, errors.Is(store.DeleteUser(ctx, alice.Id), storage.ErrNotFound))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.Nil(t, store.Ping(ctx))
	})
}

func Test_PutSettingsIsAtomic(t *testing.T) {
	grm, l, cfg, err := setup()
	require.Nil(t, err)

	store := NewPostgresStakingStore(grm, l, cfg)
	ctx := context.Background()

	_, err = store.PutSettings(ctx, []*storage.StakingSetting{
		{Name: storage.Setting_DisplayedApy, Value: "3"},
		{Name: storage.Setting_ActualApy, Value: "3.57"},
	})
	require.Nil(t, err)

	// fail every write of the actual rate from here on
	err = grm.Callback().Create().Before("gorm:create").Register("test:fail_actual_apy", func(db *gorm.DB) {
		if setting, ok := db.Statement.Dest.(*storage.StakingSetting); ok && setting.Name == storage.Setting_ActualApy {
			_ = db.AddError(errors.New("disk I/O error"))
		}
	})
	require.Nil(t, err)

	_, err = store.PutSettings(ctx, []*storage.StakingSetting{
		{Name: storage.Setting_DisplayedApy, Value: "4"},
		{Name: storage.Setting_ActualApy, Value: "2"},
	})
	require.NotNil(t, err)

	displayed, err := store.GetSetting(ctx, storage.Setting_DisplayedApy)
	require.Nil(t, err)
	assert.Equal(t, "3", displayed.Value)

	actual, err := store.GetSetting(ctx, storage.Setting_ActualApy)
	require.Nil(t, err)
	assert.Equal(t, "3.57", actual.Value)
}
