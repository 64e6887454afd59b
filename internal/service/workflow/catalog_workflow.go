package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/qs-lzh/cineportal/internal/cache"
	"github.com/qs-lzh/cineportal/internal/mq"
)

// CacheEvicter drops cache entries. *cache.RedisCache satisfies it.
type CacheEvicter interface {
	Delete(ctx context.Context, keys ...string) error
}

// CatalogWorkflow keeps the catalog cache in step with committed movie
// changes. Every change arrives twice, once right away and once from the
// delay queue, and each delivery evicts the movie's cached detail.
type CatalogWorkflow struct {
	cache  CacheEvicter
	logger *zap.Logger
}

func NewCatalogWorkflow(cache CacheEvicter, logger *zap.Logger) *CatalogWorkflow {
	return &CatalogWorkflow{
		cache:  cache,
		logger: logger,
	}
}

func (w *CatalogWorkflow) Start(mqConn *amqp.Connection) error {
	if err := w.ConsumeMovieChanged(mqConn); err != nil {
		return err
	}
	return nil
}

func (w *CatalogWorkflow) ConsumeMovieChanged(conn *amqp.Connection) error {
	ch, err := mq.NewChannel(conn)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(mq.MovieChangedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", mq.MovieChangedQueue, err)
	}

	go func() {
		for msg := range msgs {
			if err := w.handleMovieChanged(msg); err != nil {
				w.logger.Warn("failed to handle movie change", zap.Error(err))
			}
		}
		w.logger.Info("movie change consumer stopped")
	}()

	return nil
}

func (w *CatalogWorkflow) handleMovieChanged(msg amqp.Delivery) error {
	var message mq.MovieChangedMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		msg.Nack(false, false)
		return err
	}

	if err := w.cache.Delete(context.Background(), cache.MakeMovieDetailKey(message.MovieID)); err != nil {
		msg.Nack(false, !msg.Redelivered)
		return fmt.Errorf("evict movie %d: %w", message.MovieID, err)
	}

	msg.Ack(false)
	w.logger.Debug("movie cache evicted",
		zap.Uint("movie_id", message.MovieID),
		zap.String("action", string(message.Action)),
		zap.String("message_id", message.MessageID),
	)
	return nil
}
