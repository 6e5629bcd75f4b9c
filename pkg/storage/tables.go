package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type StakeStatus string

const (
	StakeStatus_Pending   StakeStatus = "pending"
	StakeStatus_Active    StakeStatus = "active"
	StakeStatus_Withdrawn StakeStatus = "withdrawn"
)

type TransactionType string

const (
	TransactionType_Stake          TransactionType = "stake"
	TransactionType_Reward         TransactionType = "reward"
	TransactionType_ReferralReward TransactionType = "referral_reward"
	TransactionType_Withdraw       TransactionType = "withdraw"
	TransactionType_WithdrawAll    TransactionType = "withdraw_all"
	TransactionType_Unstake        TransactionType = "unstake"
	TransactionType_Transfer       TransactionType = "transfer"
)

type TransactionStatus string

const (
	TransactionStatus_Pending   TransactionStatus = "pending"
	TransactionStatus_Completed TransactionStatus = "completed"
	TransactionStatus_Failed    TransactionStatus = "failed"
)

type User struct {
	Id            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	WalletAddress *string    `json:"walletAddress"`
	ReferrerId    *uint64    `json:"referrerId"`
	ReferralCode  string     `json:"referralCode"`
	IsAdmin       bool       `json:"isAdmin"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"-"`
}

type Stake struct {
	Id        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId    uint64          `json:"userId"`
	Coin      string          `json:"coin"`
	Amount    decimal.Decimal `json:"amount"`
	Status    StakeStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

// Transaction is an append-only ledger row. Amounts are positive except transfer rows, which
// are negative on the sending side. withdraw_all rows carry the principal part separately.
type Transaction struct {
	Id              uint64              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId          uint64              `json:"userId"`
	Type            TransactionType     `json:"type"`
	Coin            string              `json:"coin"`
	Amount          decimal.Decimal     `json:"amount"`
	PrincipalAmount decimal.NullDecimal `json:"principalAmount"`
	Status          TransactionStatus   `json:"status"`
	CounterpartyId  *uint64             `json:"counterpartyId,omitempty"`
	PostingBucket   *int64              `json:"-"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       *time.Time          `json:"-"`
}

type Reward struct {
	Id              uint64 `gorm:"primaryKey;autoIncrement"`
	UserId          uint64
	TransactionId   uint64
	Amount          decimal.Decimal
	PrincipalAmount decimal.Decimal
	ApyPercent      decimal.Decimal
	IntervalSeconds int64
	CreatedAt       time.Time
}

type ReferralReward struct {
	Id                  uint64 `gorm:"primaryKey;autoIncrement"`
	ReferrerId          uint64
	RefereeId           uint64
	TransactionId       uint64
	SourceTransactionId uint64
	Amount              decimal.Decimal
	CreatedAt           time.Time
}

type StakingSetting struct {
	Name      string    `gorm:"primaryKey" json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	Setting_DisplayedApy = "displayed_apy"
	Setting_ActualApy    = "actual_apy"
)
