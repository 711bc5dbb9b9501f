package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"messenger_auth/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrChannelClosed = errors.New("delivery channel closed")

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

// Handler processes one delivery body. A non-nil error drops the message
// instead of requeueing it, so a malformed payload cannot loop forever.
type Handler func(body []byte) error

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

func (r *RabbitMQClient) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.SendMessage"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    msg.ID,
			Type:         msg.Purpose,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * StartReading consumes the declared queue until ctx is done.
// Deliveries are acked only after handle returns.
func (r *RabbitMQClient) StartReading(ctx context.Context, handle Handler) error {
	const op = "rabbitmq.StartReading"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := r.channel.ConsumeWithContext(
		ctx, r.queue.Name, "", false, false, false, false, nil,
	)
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
				return fmt.Errorf("%s: %w", op, ErrChannelClosed)
			}

			if err := handle(d.Body); err != nil {
				_ = d.Nack(false, false)
				continue
			}

			if err := d.Ack(false); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}
