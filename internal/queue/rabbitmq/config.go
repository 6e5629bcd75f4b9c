package rabbitmq

import "github.com/stakewell/stakedash/internal/config"

const (
	Queue_ledgerEvents        = "stakedash-ledger-events"
	Queue_notificationsEvents = "stakedash-notifications"

	RoutingKey_allEvents            = "#"
	RoutingKey_rewardPosted         = "reward.posted"
	RoutingKey_referralRewardPosted = "referral_reward.posted"
	RoutingKey_accountEvents        = "user.*"
)

// GetQueuesAndExchanges declares the topic exchange domain events are published to, plus the
// durable queues downstream consumers read from. Routing keys are event names.
func GetQueuesAndExchanges(exchange string) ([]*RabbitMQQueue, []*RabbitMQExchange) {
	queues := []*RabbitMQQueue{
		{
			Name:           Queue_ledgerEvents,
			Durable:        true,
			AutoAck:        false,
			Exclusive:      false,
			BindExchange:   exchange,
			BindRoutingKey: RoutingKey_allEvents,
		}, {
			Name:           Queue_notificationsEvents,
			Durable:        true,
			AutoAck:        false,
			Exclusive:      false,
			BindExchange:   exchange,
			BindRoutingKey: RoutingKey_rewardPosted,
		}, {
			Name:           Queue_notificationsEvents,
			Durable:        true,
			AutoAck:        false,
			Exclusive:      false,
			BindExchange:   exchange,
			BindRoutingKey: RoutingKey_referralRewardPosted,
		}, {
			Name:           Queue_notificationsEvents,
			Durable:        true,
			AutoAck:        false,
			Exclusive:      false,
			BindExchange:   exchange,
			BindRoutingKey: RoutingKey_accountEvents,
		},
	}

	exchanges := []*RabbitMQExchange{
		{
			Name:       exchange,
			Durable:    true,
			AutoDelete: false,
			Kind:       "topic",
		},
	}

	return queues, exchanges
}

func NewRabbitMQConfigFromConfig(cfg *config.Config) *RabbitMQConfig {
	exchange := cfg.RabbitMqConfig.Exchange
	if exchange == "" {
		exchange = "stakedash"
	}
	queues, exchanges := GetQueuesAndExchanges(exchange)
	return &RabbitMQConfig{
		Username:  cfg.RabbitMqConfig.Username,
		Password:  cfg.RabbitMqConfig.Password,
		Url:       cfg.RabbitMqConfig.Url,
		Secure:    cfg.RabbitMqConfig.Secure,
		Exchange:  exchange,
		Queues:    queues,
		Exchanges: exchanges,
	}
}
