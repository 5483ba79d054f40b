package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/luxora/storefront-api/internal/mailer"
	"github.com/luxora/storefront-api/internal/model"
)

const (
	eventsQueue    = "orders.events"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
	idempotencyTTL = 24 * time.Hour
)

var errMalformedEvent = errors.New("malformed order event")

// OrderWorker turns order events into customer emails.
type OrderWorker struct {
	channel     *amqp.Channel
	sender      mailer.Sender
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewOrderWorker(ch *amqp.Channel, sender mailer.Sender, redisClient *redis.Client, log *slog.Logger) *OrderWorker {
	return &OrderWorker{
		channel:     ch,
		sender:      sender,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares the events queue and its dead-letter route.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, eventsQueue, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(eventsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": eventsQueue,
	}); err != nil {
		return fmt.Errorf("declare events queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *OrderWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(eventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started", "queue", eventsQueue)
	return nil
}

func (w *OrderWorker) Stop() { close(w.done) }

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	event, err := decodeEvent(msg.Body)
	if err != nil {
		w.log.Error("decode order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("type", event.Type, "order_id", event.OrderID, "order_number", event.OrderNumber)
	key := idempotencyKey(event)

	if w.redisClient != nil {
		exists, err := w.redisClient.Exists(ctx, key).Result()
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if exists > 0 {
			log.Info("order event already handled, skipping")
			_ = msg.Ack(false)
			return
		}
	}

	if err := w.notify(ctx, event); err != nil {
		log.Error("notify customer", "error", err)
		_ = msg.Nack(false, false) // dead-lettered
		return
	}

	if w.redisClient != nil {
		if err := w.redisClient.Set(ctx, key, "1", idempotencyTTL).Err(); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}

	_ = msg.Ack(false)
	log.Info("order event handled")
}

func (w *OrderWorker) notify(ctx context.Context, event model.OrderEvent) error {
	m, err := mailer.OrderMessage(event)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	if err := w.sender.Send(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func decodeEvent(body []byte) (model.OrderEvent, error) {
	var event model.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	switch {
	case event.Type != model.OrderEventPlaced && event.Type != model.OrderEventStatusChanged:
		return event, fmt.Errorf("%w: unknown type %q", errMalformedEvent, event.Type)
	case event.OrderID == uuid.Nil, event.Email == "":
		return event, fmt.Errorf("%w: missing order id or email", errMalformedEvent)
	}
	return event, nil
}

func idempotencyKey(event model.OrderEvent) string {
	return fmt.Sprintf("order_event:%s:%s:%s", event.Type, event.OrderID, event.Status)
}
