// Package publisher announces visible commits on the index-complete Kafka
// topic so downstream consumers can refresh.
package publisher

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/resilience"
)

// EventWriter is satisfied by *kafka.Producer.
type EventWriter interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

type Publisher struct {
	writer EventWriter
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func New(w EventWriter, retry resilience.RetryConfig) *Publisher {
	return &Publisher{
		writer: w,
		retry:  retry,
		logger: slog.Default().With("component", "publisher"),
	}
}

// IndexCompleted publishes ev keyed by generation, retrying with backoff.
func (p *Publisher) IndexCompleted(ctx context.Context, ev ingestion.IndexCompleteEvent) error {
	event := kafka.Event{
		Key:   strconv.FormatUint(ev.Generation, 10),
		Value: ev,
	}
	err := resilience.Retry(ctx, "publish-index-complete", p.retry, func() error {
		return p.writer.Publish(ctx, event)
	})
	if err != nil {
		return err
	}
	p.logger.Debug("index complete published", "generation", ev.Generation, "docs", ev.Docs)
	return nil
}
