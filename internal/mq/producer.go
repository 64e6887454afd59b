package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

func SendImmediateMessage(ctx context.Context, ch *amqp.Channel, queueName string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to queue %s: %w", queueName, err)
	}

	return nil
}

// Publisher sends catalog change notifications. It owns one channel; the
// mutex keeps concurrent publishes from interleaving frames.
type Publisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := NewChannel(conn)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

// PublishMovieChanged sends the notification now and once more through the
// delay queue.
func (p *Publisher) PublishMovieChanged(ctx context.Context, movieID uint, action MovieAction) error {
	message := MovieChangedMessage{
		MessageID:  uuid.NewString(),
		MovieID:    movieID,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := SendImmediateMessage(ctx, p.ch, MovieChangedQueue, message); err != nil {
		return err
	}
	return SendImmediateMessage(ctx, p.ch, MovieChangedDelayQueue, message)
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
