package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lockify/internal/config"
	"lockify/internal/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrNotConfirmed = errors.New("broker did not confirm the message")

// Broker owns one connection and one confirm-mode channel bound to the
// verification queue.
type Broker struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func New(cfg config.RabbitMQ) (*Broker, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b := &Broker{conn: conn, queue: cfg.QueueName}

	if b.ch, err = conn.Channel(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := b.ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		b.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := b.ch.Confirm(false); err != nil {
		b.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// SendMessage publishes msg as a persistent JSON message and waits for the
// broker to confirm it.
func (b *Broker) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.SendMessage"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	conf, err := b.ch.PublishWithDeferredConfirmWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         msg.Purpose,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !acked {
		return fmt.Errorf("%s: %w", op, ErrNotConfirmed)
	}

	return nil
}

// StartReading consumes the queue until ctx is done or the channel closes.
// handle returning an error requeues the delivery once; a redelivered
// message that fails again is dropped.
func (b *Broker) StartReading(ctx context.Context, handle func(body []byte) error) error {
	const op = "rabbitmq.StartReading"

	if err := b.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := b.ch.ConsumeWithContext(ctx, b.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s: delivery channel closed", op)
			}

			if err := handle(d.Body); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}

			_ = d.Ack(false)
		}
	}
}

func (b *Broker) Close() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	_ = b.conn.Close()
}
