package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("record already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyPosted       = errors.New("reward already posted for this window")
)

type StakingStore interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserById(ctx context.Context, id uint64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*User, error)
	SetWalletAddress(ctx context.Context, userId uint64, address string) (*User, error)

	// DeleteUser removes the user with their stakes, transactions and reward rows.
	// Referees of the user keep their accounts with the referrer cleared.
	DeleteUser(ctx context.Context, userId uint64) error

	CreateStake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal, at time.Time) (*Stake, *Transaction, error)
	ListActiveStakes(ctx context.Context, userId uint64) ([]*Stake, error)
	ListAllActiveStakes(ctx context.Context) ([]*Stake, error)
	ListActiveStakeTotals(ctx context.Context) ([]*StakeTotal, error)

	// Unstake reduces active stakes newest first by amount. Exhausted stakes become withdrawn.
	Unstake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal, at time.Time) (*Transaction, error)
	// WithdrawAll closes active stakes in coin only. Stakes in other coins stay active.
	WithdrawAll(ctx context.Context, userId uint64, coin string, at time.Time) (*Transaction, error)
	Withdraw(ctx context.Context, userId uint64, coin string, amount decimal.Decimal, at time.Time) (*Transaction, error)
	Transfer(ctx context.Context, fromUserId uint64, toUserId uint64, coin string, amount decimal.Decimal, at time.Time) (*Transaction, error)

	ListTransactions(ctx context.Context, filter *TransactionFilter) ([]*Transaction, error)
	HasRewardInBucket(ctx context.Context, userId uint64, bucket int64) (bool, error)

	// PostReward writes the reward transaction, its reward row and the referral pair in one
	// database transaction. Returns ErrAlreadyPosted when the window is taken.
	PostReward(ctx context.Context, posting *RewardPosting) (*PostedReward, error)

	GetSetting(ctx context.Context, name string) (*StakingSetting, error)
	PutSetting(ctx context.Context, name string, value string) (*StakingSetting, error)
	// PutSettings saves every setting in one database transaction. On error none is saved.
	PutSettings(ctx context.Context, settings []*StakingSetting) ([]*StakingSetting, error)
	ListSettings(ctx context.Context) ([]*StakingSetting, error)

	CountLedger(ctx context.Context) (int64, error)
	IterateLedger(ctx context.Context, batchSize int, fn func(batch []*Transaction) error) error

	Ping(ctx context.Context) error
}

type TransactionFilter struct {
	UserId       uint64
	Types        []TransactionType
	CreatedAfter *time.Time
	Limit        int
	Offset       int
	// Ascending orders oldest first. The default is newest first.
	Ascending bool
}

type StakeTotal struct {
	UserId          uint64
	Total           decimal.Decimal
	ReferrerId      *uint64
	EarliestStakeAt time.Time
	StakeCount      int
}

type RewardPosting struct {
	UserId          uint64
	Coin            string
	Amount          decimal.Decimal
	PrincipalAmount decimal.Decimal
	ApyPercent      decimal.Decimal
	IntervalSeconds int64
	PostingBucket   int64
	PostedAt        time.Time

	ReferrerId     *uint64
	ReferralAmount decimal.Decimal
}

type PostedReward struct {
	Transaction         *Transaction
	Reward              *Reward
	ReferralTransaction *Transaction
	ReferralReward      *ReferralReward
}
