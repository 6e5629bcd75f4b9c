package stakingService

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/pkg/clients/stakingProvider"
	"github.com/stakewell/stakedash/pkg/coins"
	"github.com/stakewell/stakedash/pkg/eventBus/eventBusTypes"
	"github.com/stakewell/stakedash/pkg/service/baseDataService"
	serviceTypes "github.com/stakewell/stakedash/pkg/service/types"
	"github.com/stakewell/stakedash/pkg/storage"
	"go.uber.org/zap"
)

// Amounts are stored as numeric(38,18).
const maxAmountDecimals = 18

type StakingService struct {
	baseDataService.BaseDataService
	logger       *zap.Logger
	globalConfig *config.Config
	catalogue    *coins.Catalogue
	provider     stakingProvider.Provider
	eventBus     eventBusTypes.IEventBus
	clock        func() time.Time
}

func NewStakingService(
	store storage.StakingStore,
	catalogue *coins.Catalogue,
	provider stakingProvider.Provider,
	eb eventBusTypes.IEventBus,
	logger *zap.Logger,
	globalConfig *config.Config,
) *StakingService {
	return &StakingService{
		BaseDataService: baseDataService.BaseDataService{
			Store: store,
		},
		logger:       logger,
		globalConfig: globalConfig,
		catalogue:    catalogue,
		provider:     provider,
		eventBus:     eb,
		clock:        time.Now,
	}
}

type StakeResult struct {
	Stake       *storage.Stake       `json:"stake"`
	Transaction *storage.Transaction `json:"transaction"`
}

type TransferRequest struct {
	RecipientReferralCode string          `json:"recipientReferralCode"`
	RecipientId           uint64          `json:"recipientId"`
	Coin                  string          `json:"coin"`
	Amount                decimal.Decimal `json:"amount"`
}

func (ss *StakingService) publish(name string, data any) {
	if ss.eventBus == nil {
		return
	}
	ss.eventBus.Publish(&eventBusTypes.Event{Name: name, Data: data})
}

func (ss *StakingService) resolveCoin(symbol string) (*coins.Coin, error) {
	if strings.TrimSpace(symbol) == "" {
		symbol = ss.globalConfig.GetDefaultCoin()
	}
	coin, err := ss.catalogue.Get(symbol)
	if err != nil {
		return nil, serviceTypes.NewValidationError("coin", "'%s' is not a supported coin", symbol)
	}
	return coin, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return serviceTypes.NewValidationError("amount", "must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(maxAmountDecimals)) {
		return serviceTypes.NewValidationError("amount", "must have at most %d decimal places", maxAmountDecimals)
	}
	return nil
}

// MinStake is the larger of the coin's minimum and the configured minimum.
func (ss *StakingService) MinStake(coin *coins.Coin) decimal.Decimal {
	return decimal.Max(coin.MinStake, ss.globalConfig.StakingConfig.MinStake)
}

func (ss *StakingService) Stake(ctx context.Context, userId uint64, symbol string, amount decimal.Decimal) (*StakeResult, error) {
	coin, err := ss.resolveCoin(symbol)
	if err != nil {
		return nil, err
	}
	if !coin.StakingEnabled {
		return nil, serviceTypes.NewValidationError("coin", "staking is not enabled for %s", coin.Symbol)
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if minStake := ss.MinStake(coin); amount.LessThan(minStake) {
		return nil, serviceTypes.NewValidationError("amount", "must be at least %s %s", minStake, coin.Symbol)
	}

	stake, tx, err := ss.Store.CreateStake(ctx, userId, coin.Symbol, amount, ss.clock())
	if err != nil {
		return nil, err
	}

	if ss.provider != nil {
		if _, err := ss.provider.Stake(ctx, userId, coin.Symbol, amount); err != nil {
			ss.logger.Sugar().Warnw("Staking provider rejected stake, ledger entry kept",
				zap.Uint64("userId", userId),
				zap.Uint64("stakeId", stake.Id),
				zap.Error(err),
			)
		}
	}

	ss.logger.Sugar().Infow("Created stake",
		zap.Uint64("userId", userId),
		zap.Uint64("stakeId", stake.Id),
		zap.String("coin", coin.Symbol),
		zap.String("amount", amount.String()),
	)
	ss.publish(eventBusTypes.Event_StakeCreated, &eventBusTypes.StakeCreatedData{
		UserId:        userId,
		StakeId:       stake.Id,
		TransactionId: tx.Id,
		Coin:          coin.Symbol,
		Amount:        amount,
		CreatedAt:     tx.CreatedAt,
	})
	return &StakeResult{Stake: stake, Transaction: tx}, nil
}

// Unstake reduces the user's active stakes newest first.
func (ss *StakingService) Unstake(ctx context.Context, userId uint64, symbol string, amount decimal.Decimal) (*storage.Transaction, error) {
	coin, err := ss.resolveCoin(symbol)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	tx, err := ss.Store.Unstake(ctx, userId, coin.Symbol, amount, ss.clock())
	if err != nil {
		return nil, err
	}
	ss.providerUnstake(ctx, userId, coin.Symbol, amount)

	ss.publish(eventBusTypes.Event_StakeUnstaked, &eventBusTypes.StakeUnstakedData{
		UserId:        userId,
		TransactionId: tx.Id,
		Coin:          coin.Symbol,
		Amount:        amount,
		CreatedAt:     tx.CreatedAt,
	})
	return tx, nil
}

func (ss *StakingService) providerUnstake(ctx context.Context, userId uint64, coin string, amount decimal.Decimal) {
	if ss.provider == nil || !amount.IsPositive() {
		return
	}
	if _, err := ss.provider.Unstake(ctx, userId, coin, amount); err != nil {
		ss.logger.Sugar().Warnw("Staking provider rejected unstake, ledger entry kept",
			zap.Uint64("userId", userId),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
	}
}

// Withdraw pays out part of the available reward balance.
func (ss *StakingService) Withdraw(ctx context.Context, userId uint64, symbol string, amount decimal.Decimal) (*storage.Transaction, error) {
	coin, err := ss.resolveCoin(symbol)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	tx, err := ss.Store.Withdraw(ctx, userId, coin.Symbol, amount, ss.clock())
	if err != nil {
		return nil, err
	}
	ss.publishWithdrawal(tx)
	return tx, nil
}

// WithdrawAll closes every active stake in the coin and pays out principal plus the available balance.
func (ss *StakingService) WithdrawAll(ctx context.Context, userId uint64, symbol string) (*storage.Transaction, error) {
	coin, err := ss.resolveCoin(symbol)
	if err != nil {
		return nil, err
	}

	tx, err := ss.Store.WithdrawAll(ctx, userId, coin.Symbol, ss.clock())
	if err != nil {
		return nil, err
	}
	if tx.PrincipalAmount.Valid {
		ss.providerUnstake(ctx, userId, coin.Symbol, tx.PrincipalAmount.Decimal)
	}
	ss.publishWithdrawal(tx)
	return tx, nil
}

func (ss *StakingService) publishWithdrawal(tx *storage.Transaction) {
	ss.logger.Sugar().Infow("Created withdrawal",
		zap.Uint64("userId", tx.UserId),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()),
	)
	ss.publish(eventBusTypes.Event_WithdrawalCreated, &eventBusTypes.WithdrawalCreatedData{
		UserId:        tx.UserId,
		TransactionId: tx.Id,
		Type:          string(tx.Type),
		Coin:          tx.Coin,
		Amount:        tx.Amount,
		CreatedAt:     tx.CreatedAt,
	})
}

// Transfer moves reward balance to another user, addressed by referral code or id.
func (ss *StakingService) Transfer(ctx context.Context, fromUserId uint64, req *TransferRequest) (*storage.Transaction, error) {
	coin, err := ss.resolveCoin(req.Coin)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	var recipient *storage.User
	switch {
	case req.RecipientReferralCode != "":
		recipient, err = ss.Store.GetUserByReferralCode(ctx, req.RecipientReferralCode)
	case req.RecipientId != 0:
		recipient, err = ss.Store.GetUserById(ctx, req.RecipientId)
	default:
		return nil, serviceTypes.NewValidationError("recipient", "a recipient referral code or id is required")
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, serviceTypes.NewValidationError("recipient", "does not match any user")
		}
		return nil, err
	}
	if recipient.Id == fromUserId {
		return nil, serviceTypes.NewValidationError("recipient", "cannot transfer to yourself")
	}

	tx, err := ss.Store.Transfer(ctx, fromUserId, recipient.Id, coin.Symbol, req.Amount, ss.clock())
	if err != nil {
		return nil, err
	}
	ss.publish(eventBusTypes.Event_TransferCreated, &eventBusTypes.TransferCreatedData{
		FromUserId:    fromUserId,
		ToUserId:      recipient.Id,
		TransactionId: tx.Id,
		Coin:          coin.Symbol,
		Amount:        req.Amount,
		CreatedAt:     tx.CreatedAt,
	})
	return tx, nil
}

var knownTransactionTypes = map[storage.TransactionType]struct{}{
	storage.TransactionType_Stake:          {},
	storage.TransactionType_Reward:         {},
	storage.TransactionType_ReferralReward: {},
	storage.TransactionType_Withdraw:       {},
	storage.TransactionType_WithdrawAll:    {},
	storage.TransactionType_Unstake:        {},
	storage.TransactionType_Transfer:       {},
}

// ListTransactions returns a page of the user's ledger, newest first.
func (ss *StakingService) ListTransactions(
	ctx context.Context,
	userId uint64,
	types []string,
	pagination *serviceTypes.Pagination,
) ([]*storage.Transaction, error) {
	filter := &storage.TransactionFilter{UserId: userId}
	for _, t := range types {
		txType := storage.TransactionType(strings.ToLower(strings.TrimSpace(t)))
		if _, ok := knownTransactionTypes[txType]; !ok {
			return nil, serviceTypes.NewValidationError("type", "unknown transaction type '%s'", t)
		}
		filter.Types = append(filter.Types, txType)
	}
	if pagination == nil {
		pagination = serviceTypes.NewDefaultPagination()
	}
	filter.Limit = int(pagination.PageSize)
	filter.Offset = pagination.Offset()
	return ss.Store.ListTransactions(ctx, filter)
}
