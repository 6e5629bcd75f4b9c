package stakingProvider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Operation string

const (
	Operation_Stake   Operation = "stake"
	Operation_Unstake Operation = "unstake"
)

type Receipt struct {
	Id        string          `json:"id"`
	Operation Operation       `json:"operation"`
	UserId    uint64          `json:"userId"`
	Coin      string          `json:"coin"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Provider is the external staking backend. Callers treat it as best-effort: the ledger is
// written regardless of the provider's answer.
type Provider interface {
	Stake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal) (*Receipt, error)
	Unstake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal) (*Receipt, error)
}

// StubProvider accepts every request and keeps the receipts in memory.
type StubProvider struct {
	logger   *zap.Logger
	mu       sync.Mutex
	receipts []*Receipt
}

func NewStubProvider(l *zap.Logger) *StubProvider {
	return &StubProvider{
		logger:   l,
		receipts: make([]*Receipt, 0),
	}
}

func (sp *StubProvider) record(op Operation, userId uint64, coin string, amount decimal.Decimal) *Receipt {
	r := &Receipt{
		Id:        uuid.NewString(),
		Operation: op,
		UserId:    userId,
		Coin:      coin,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	sp.mu.Lock()
	sp.receipts = append(sp.receipts, r)
	sp.mu.Unlock()

	sp.logger.Sugar().Debugw("Recorded provider operation",
		zap.String("receiptId", r.Id),
		zap.String("operation", string(op)),
		zap.Uint64("userId", userId),
		zap.String("coin", coin),
		zap.String("amount", amount.String()),
	)
	return r
}

func (sp *StubProvider) Stake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sp.record(Operation_Stake, userId, coin, amount), nil
}

func (sp *StubProvider) Unstake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sp.record(Operation_Unstake, userId, coin, amount), nil
}

func (sp *StubProvider) Receipts() []*Receipt {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	out := make([]*Receipt, len(sp.receipts))
	copy(out, sp.receipts)
	return out
}
