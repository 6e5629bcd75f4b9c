package eventPublisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stakewell/stakedash/pkg/eventBus/eventBusTypes"
	"go.uber.org/zap"
)

const (
	consumerId     = eventBusTypes.ConsumerId("event-publisher")
	channelSize    = 1000
	publishTimeout = 5 * time.Second
)

// Publisher is the broker side of the bridge, satisfied by *rabbitmq.RabbitMQ.
type Publisher interface {
	Publish(ctx context.Context, exchangeName string, routingKey string, publishing amqp.Publishing) error
}

type Envelope struct {
	Id         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// EventPublisher forwards in-process domain events to a broker exchange using the event
// name as routing key. Delivery is best-effort; failures are logged and dropped.
type EventPublisher struct {
	logger    *zap.Logger
	eventBus  eventBusTypes.IEventBus
	publisher Publisher
	exchange  string
	clock     func() time.Time
}

func NewEventPublisher(eb eventBusTypes.IEventBus, p Publisher, exchange string, l *zap.Logger) *EventPublisher {
	return &EventPublisher{
		logger:    l,
		eventBus:  eb,
		publisher: p,
		exchange:  exchange,
		clock:     time.Now,
	}
}

// Start subscribes to the bus and forwards events until ctx is done. The returned channel is
// closed once the consumer has unsubscribed.
func (ep *EventPublisher) Start(ctx context.Context) <-chan struct{} {
	consumer := &eventBusTypes.Consumer{
		Id:      consumerId,
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, channelSize),
	}
	ep.eventBus.Subscribe(consumer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ep.eventBus.Unsubscribe(consumer)
		for {
			select {
			case <-ctx.Done():
				ep.logger.Sugar().Infow("Stopping event publisher")
				return
			case event := <-consumer.Channel:
				if err := ep.Forward(ctx, event); err != nil {
					ep.logger.Sugar().Errorw("Failed to forward event",
						zap.String("eventName", event.Name),
						zap.Error(err),
					)
				}
			}
		}
	}()
	return done
}

func (ep *EventPublisher) Forward(ctx context.Context, event *eventBusTypes.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	envelope := &Envelope{
		Id:         uuid.NewString(),
		Name:       event.Name,
		OccurredAt: ep.clock().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ep.publisher.Publish(pubCtx, ep.exchange, event.Name, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.Id,
		Timestamp:    envelope.OccurredAt,
		Type:         event.Name,
		Body:         body,
	})
	if err != nil {
		return err
	}
	ep.logger.Sugar().Debugw("Forwarded event", zap.String("eventName", event.Name), zap.String("messageId", envelope.Id))
	return nil
}
