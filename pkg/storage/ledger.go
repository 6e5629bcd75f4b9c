package storage

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/pkg/interest"
)

// LedgerSummary folds a user's completed transactions into balances.
type LedgerSummary struct {
	Principal       decimal.Decimal `json:"principal"`
	Rewards         decimal.Decimal `json:"rewards"`
	ReferralRewards decimal.Decimal `json:"referralRewards"`
	Withdrawn       decimal.Decimal `json:"withdrawn"`
	TransferredIn   decimal.Decimal `json:"transferredIn"`
	TransferredOut  decimal.Decimal `json:"transferredOut"`
	// Available is the reward balance that can be withdrawn or transferred.
	Available    decimal.Decimal `json:"available"`
	LastRewardAt *time.Time      `json:"lastRewardAt"`
}

// chronological returns a copy of txs ordered by (CreatedAt, Id) ascending. Principal is clamped
// at zero as it is folded, so the folds below depend on this order.
func chronological(txs []*Transaction) []*Transaction {
	sorted := make([]*Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Id < sorted[j].Id
	})
	return sorted
}

// SummarizeLedger folds txs in chronological order whatever order they are passed in.
func SummarizeLedger(txs []*Transaction) *LedgerSummary {
	s := &LedgerSummary{
		Principal:       decimal.Zero,
		Rewards:         decimal.Zero,
		ReferralRewards: decimal.Zero,
		Withdrawn:       decimal.Zero,
		TransferredIn:   decimal.Zero,
		TransferredOut:  decimal.Zero,
	}
	for _, tx := range chronological(txs) {
		if tx.Status != TransactionStatus_Completed {
			continue
		}
		switch tx.Type {
		case TransactionType_Stake:
			s.Principal = s.Principal.Add(tx.Amount)
		case TransactionType_Unstake:
			s.Principal = decimal.Max(decimal.Zero, s.Principal.Sub(tx.Amount))
		case TransactionType_Reward:
			s.Rewards = s.Rewards.Add(tx.Amount)
			if s.LastRewardAt == nil || tx.CreatedAt.After(*s.LastRewardAt) {
				at := tx.CreatedAt
				s.LastRewardAt = &at
			}
		case TransactionType_ReferralReward:
			s.ReferralRewards = s.ReferralRewards.Add(tx.Amount)
		case TransactionType_Withdraw:
			s.Withdrawn = s.Withdrawn.Add(tx.Amount)
		case TransactionType_WithdrawAll:
			// only the principal of the withdrawn coin leaves; other coins stay staked
			principal := tx.PrincipalAmount.Decimal
			s.Withdrawn = s.Withdrawn.Add(tx.Amount.Sub(principal))
			s.Principal = decimal.Max(decimal.Zero, s.Principal.Sub(principal))
		case TransactionType_Transfer:
			if tx.Amount.IsNegative() {
				s.TransferredOut = s.TransferredOut.Add(tx.Amount.Neg())
			} else {
				s.TransferredIn = s.TransferredIn.Add(tx.Amount)
			}
		}
	}
	s.Available = s.Rewards.
		Add(s.ReferralRewards).
		Add(s.TransferredIn).
		Sub(s.TransferredOut).
		Sub(s.Withdrawn)
	return s
}

// PrincipalChanges maps principal moving transactions onto timeline changes.
func PrincipalChanges(txs []*Transaction) []interest.PrincipalChange {
	changes := make([]interest.PrincipalChange, 0)
	for _, tx := range chronological(txs) {
		if tx.Status != TransactionStatus_Completed {
			continue
		}
		switch tx.Type {
		case TransactionType_Stake:
			changes = append(changes, interest.PrincipalChange{At: tx.CreatedAt, Delta: tx.Amount})
		case TransactionType_Unstake:
			changes = append(changes, interest.PrincipalChange{At: tx.CreatedAt, Delta: tx.Amount.Neg()})
		case TransactionType_WithdrawAll:
			changes = append(changes, interest.PrincipalChange{At: tx.CreatedAt, Delta: tx.PrincipalAmount.Decimal.Neg()})
		}
	}
	return changes
}
