// Package consumer reads JSON records from the document-ingest Kafka topic
// and hands them to the ingestion pipeline.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/kafka"
)

// Adder is implemented by *ingestion.Pipeline.
type Adder interface {
	Add(ctx context.Context, record []byte) (ingestion.AddResponse, error)
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

func (ic *IndexConsumer) Close() error {
	return ic.consumer.Close()
}

// HandleMessage returns a MessageHandler that adds each message value as one
// record. Records that can never be indexed are logged and skipped so they
// do not block the partition; other failures leave the offset uncommitted.
func HandleMessage(p Adder, s *schema.Schema) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := validator.ValidateRecord(s, value); err != nil {
			logger.Error("dropping invalid record", "key", string(key), "error", err)
			return nil
		}
		resp, err := p.Add(ctx, value)
		if err != nil {
			if permanent(err) {
				logger.Error("dropping unindexable record", "key", string(key), "error", err)
				return nil
			}
			return fmt.Errorf("indexing record %q: %w", key, err)
		}
		logger.Debug("record indexed", "key", string(key), "doc_id", resp.DocID, "pending", resp.Pending)
		return nil
	}
}

func permanent(err error) bool {
	return apperrors.IsSchemaError(err) ||
		errors.Is(err, apperrors.ErrInvalidFacetPath) ||
		errors.Is(err, apperrors.ErrInvalidInput)
}
