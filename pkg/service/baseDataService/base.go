package baseDataService

import (
	"context"
	"time"

	"github.com/stakewell/stakedash/pkg/storage"
)

type BaseDataService struct {
	Store storage.StakingStore
}

// GetAsOfIfNotPresent returns now when asOf is zero. Times are always handled in UTC.
func (b *BaseDataService) GetAsOfIfNotPresent(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return time.Now().UTC()
	}
	return asOf.UTC()
}

// GetUserLedger returns every ledger row of the user, oldest first.
func (b *BaseDataService) GetUserLedger(ctx context.Context, userId uint64) ([]*storage.Transaction, error) {
	return b.Store.ListTransactions(ctx, &storage.TransactionFilter{
		UserId:    userId,
		Ascending: true,
	})
}

func (b *BaseDataService) UserExists(ctx context.Context, userId uint64) error {
	_, err := b.Store.GetUserById(ctx, userId)
	return err
}
