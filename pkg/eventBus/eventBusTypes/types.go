package eventBusTypes

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Name string
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetAll returns a snapshot safe to range over while consumers change.
func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]*Consumer, len(cl.consumers))
	copy(out, cl.consumers)
	return out
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

const (
	Event_StakeCreated          = "stake.created"
	Event_StakeUnstaked         = "stake.unstaked"
	Event_RewardPosted          = "reward.posted"
	Event_ReferralRewardPosted  = "referral_reward.posted"
	Event_WithdrawalCreated     = "withdrawal.created"
	Event_TransferCreated       = "transfer.created"
	Event_UserDeleted           = "user.deleted"
	Event_RewardsTickCompleted  = "rewards.tick_completed"
	Event_StakingSettingsUpdate = "staking_settings.updated"
)

type StakeCreatedData struct {
	UserId        uint64          `json:"userId"`
	StakeId       uint64          `json:"stakeId"`
	TransactionId uint64          `json:"transactionId"`
	Coin          string          `json:"coin"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type StakeUnstakedData struct {
	UserId        uint64          `json:"userId"`
	TransactionId uint64          `json:"transactionId"`
	Coin          string          `json:"coin"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type RewardPostedData struct {
	UserId        uint64          `json:"userId"`
	TransactionId uint64          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Principal     decimal.Decimal `json:"principal"`
	ApyPercent    decimal.Decimal `json:"apyPercent"`
	PostingBucket int64           `json:"postingBucket"`
	PostedAt      time.Time       `json:"postedAt"`
}

type ReferralRewardPostedData struct {
	ReferrerId          uint64          `json:"referrerId"`
	RefereeId           uint64          `json:"refereeId"`
	TransactionId       uint64          `json:"transactionId"`
	SourceTransactionId uint64          `json:"sourceTransactionId"`
	Amount              decimal.Decimal `json:"amount"`
	PostedAt            time.Time       `json:"postedAt"`
}

type WithdrawalCreatedData struct {
	UserId        uint64          `json:"userId"`
	TransactionId uint64          `json:"transactionId"`
	Type          string          `json:"type"`
	Coin          string          `json:"coin"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type TransferCreatedData struct {
	FromUserId    uint64          `json:"fromUserId"`
	ToUserId      uint64          `json:"toUserId"`
	TransactionId uint64          `json:"transactionId"`
	Coin          string          `json:"coin"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type UserDeletedData struct {
	UserId    uint64    `json:"userId"`
	DeletedBy uint64    `json:"deletedBy"`
	DeletedAt time.Time `json:"deletedAt"`
}

type RewardsTickCompletedData struct {
	TickTime      time.Time `json:"tickTime"`
	PostingBucket int64     `json:"postingBucket"`
	Posted        int       `json:"posted"`
	Skipped       int       `json:"skipped"`
	Errored       int       `json:"errored"`
}

type StakingSettingsUpdatedData struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
