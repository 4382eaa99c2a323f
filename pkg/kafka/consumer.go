// Package kafka wraps segmentio/kafka-go for the document-ingest and
// index-complete topics. Producers send JSON values; consumers hand raw
// values to a MessageHandler and commit offsets in order.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/resilience"
)

// MessageHandler processes one message. A non-nil error is retried with
// backoff; the offset is only committed once the handler succeeds.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewConsumer joins cfg.ConsumerGroup on topic. New groups start at the
// earliest offset. A message is handled at most cfg.MaxRetries times.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, cfg.MaxRetries, handler)
}

func newConsumer(r messageReader, topic string, maxAttempts int, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  maxAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     30 * time.Second,
		},
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled. A failing message blocks its
// partition until the handler accepts it or its retries run out, in which
// case Start returns an error without committing the offset.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		op := fmt.Sprintf("handle %s/%d@%d", msg.Topic, msg.Partition, msg.Offset)
		err = resilience.Retry(ctx, op, c.retry, func() error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopping with message unhandled", "reason", ctx.Err())
				return nil
			}
			return fmt.Errorf("handling message at offset %d: %w", msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("offset commit failed", "error", err)
			continue
		}
		log.Debug("message handled", "bytes", len(msg.Value))
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
