package rabbitmq

import (
	"context"
	"fmt"
	"net/url"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitMQQueue struct {
	Name           string
	Durable        bool
	AutoAck        bool
	Exclusive      bool
	BindExchange   string
	BindRoutingKey string
}

type RabbitMQExchange struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Kind       string
}

type RabbitMQConfig struct {
	Username  string
	Password  string
	Url       string
	Secure    bool
	Exchange  string
	Queues    []*RabbitMQQueue
	Exchanges []*RabbitMQExchange
}

type RabbitMQ struct {
	logger     *zap.Logger
	config     *RabbitMQConfig
	connection *amqp.Connection
	channel    *amqp.Channel
}

func NewRabbitMQ(config *RabbitMQConfig, l *zap.Logger) *RabbitMQ {
	return &RabbitMQ{
		config: config,
		logger: l,
	}
}

func (r *RabbitMQ) Connect() (*amqp.Connection, error) {
	connUrl := buildConnectionUrl(r.config)
	r.logger.Sugar().Debugw("Connecting to RabbitMQ", zap.String("host", r.config.Url))
	conn, err := amqp.Dial(connUrl)
	if err != nil {
		r.logger.Sugar().Errorw("Failed to connect to RabbitMQ", zap.Error(err))
		return nil, err
	}
	r.connection = conn

	ch, err := conn.Channel()
	if err != nil {
		r.logger.Sugar().Errorw("Failed to open a channel", zap.Error(err))
		return nil, err
	}
	r.channel = ch

	for _, e := range r.config.Exchanges {
		r.logger.Sugar().Debugw("Declaring exchange", zap.String("exchange", e.Name))
		err = r.channel.ExchangeDeclare(e.Name, e.Kind, e.Durable, e.AutoDelete, false, false, nil)
		if err != nil {
			return nil, err
		}
	}

	declared := map[string]bool{}
	for _, q := range r.config.Queues {
		if !declared[q.Name] {
			r.logger.Sugar().Debugw("Declaring queue", zap.String("queue", q.Name))
			_, err = r.channel.QueueDeclare(q.Name, q.Durable, false, q.Exclusive, false, nil)
			if err != nil {
				return nil, err
			}
			declared[q.Name] = true
		}

		if q.BindExchange != "" {
			r.logger.Sugar().Debugw("Binding queue",
				zap.String("queue", q.Name),
				zap.String("exchange", q.BindExchange),
				zap.String("routingKey", q.BindRoutingKey),
			)
			err = r.channel.QueueBind(q.Name, q.BindRoutingKey, q.BindExchange, false, nil)
			if err != nil {
				return nil, err
			}
		}
	}

	return conn, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, exchangeName string, routingKey string, publishing amqp.Publishing) error {
	if r.channel == nil {
		return fmt.Errorf("rabbitmq channel is not open")
	}
	return r.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, publishing)
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.connection != nil {
		return r.connection.Close()
	}
	return nil
}

func buildConnectionUrl(cfg *RabbitMQConfig) string {
	protocol := "amqp"
	if cfg.Secure {
		protocol = "amqps"
	}
	if cfg.Username == "" {
		return fmt.Sprintf("%s://%s", protocol, cfg.Url)
	}
	return fmt.Sprintf("%s://%s@%s", protocol, url.UserPassword(cfg.Username, cfg.Password).String(), cfg.Url)
}
