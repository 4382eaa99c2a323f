// Package store persists committed segments. A commit is durable once
// Persist returns; Load restores every persisted segment in generation
// order when an index is reopened.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/postgres"
)

type Store interface {
	Persist(ctx context.Context, seg *index.Segment) error
	Load(ctx context.Context) ([]*index.Segment, error)
	Name() string
	Close() error
}

// BoltFileName is the database file used by the bolt store inside DataDir.
const BoltFileName = "segments.db"

// Open builds the store selected by cfg.Indexer.Store.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Indexer.Store {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StoreFile:
		return NewFile(cfg.Indexer.DataDir), nil
	case config.StoreBolt:
		return OpenBolt(filepath.Join(cfg.Indexer.DataDir, BoltFileName))
	case config.StorePostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgres(ctx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		s.ownsClient = true
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Indexer.Store)
	}
}
