package store

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
)

// Memory keeps segments in process. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	segments []*index.Segment
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Persist(_ context.Context, seg *index.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = append(m.segments, seg)
	return nil
}

func (m *Memory) Load(_ context.Context) ([]*index.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*index.Segment, len(m.segments))
	copy(out, m.segments)
	return out, nil
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() error { return nil }
