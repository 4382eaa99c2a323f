package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/config"
)

// Notifier is told about every visible commit.
type Notifier interface {
	IndexCompleted(ctx context.Context, ev IndexCompleteEvent) error
}

// Pipeline owns the single writer of an index. Every writer call goes
// through its mutex.
type Pipeline struct {
	mu       sync.Mutex
	ix       *indexer.Index
	writer   *indexer.Writer
	notifier Notifier
	clock    clock.Clock

	commitInterval  time.Duration
	maxPendingDocs  int
	maxPendingBytes int64

	kick   chan struct{}
	logger *slog.Logger
}

type Option func(*Pipeline)

func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a pipeline with the commit policy from cfg.
func New(ix *indexer.Index, cfg config.IndexerConfig, opts ...Option) (*Pipeline, error) {
	w, err := ix.Writer()
	if err != nil {
		return nil, fmt.Errorf("creating writer: %w", err)
	}
	p := &Pipeline{
		ix:              ix,
		writer:          w,
		clock:           clock.WallClock,
		commitInterval:  cfg.CommitInterval,
		maxPendingDocs:  cfg.MaxPendingDocs,
		maxPendingBytes: cfg.MaxPendingBytes,
		kick:            make(chan struct{}, 1),
		logger:          slog.Default().With("component", "ingestion-pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Add buffers one JSON record. Crossing a pending limit schedules a commit
// on the Run loop.
func (p *Pipeline) Add(ctx context.Context, record []byte) (AddResponse, error) {
	p.mu.Lock()
	id, err := p.writer.AddJSON(record)
	pending := p.writer.PendingDocs()
	full := p.overLimit()
	p.mu.Unlock()
	if err != nil {
		return AddResponse{}, err
	}
	if full {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
	p.logger.Debug("document buffered", "doc_id", id, "pending", pending)
	return AddResponse{DocID: id, Pending: pending}, nil
}

func (p *Pipeline) overLimit() bool {
	if p.maxPendingDocs > 0 && p.writer.PendingDocs() >= p.maxPendingDocs {
		return true
	}
	return p.maxPendingBytes > 0 && p.writer.PendingBytes() >= p.maxPendingBytes
}

// Commit commits the buffer, reloads the index and notifies. A failed
// notification is logged; the commit itself stands.
func (p *Pipeline) Commit(ctx context.Context) (CommitResult, error) {
	p.mu.Lock()
	docs := p.writer.PendingDocs()
	gen, err := p.writer.Commit(ctx)
	if err != nil {
		p.mu.Unlock()
		return CommitResult{}, err
	}
	p.ix.Reload()
	total := p.ix.Searcher().NumDocs()
	p.mu.Unlock()

	result := CommitResult{
		Generation:  gen,
		Docs:        docs,
		TotalDocs:   total,
		CommittedAt: p.clock.Now().UTC(),
	}
	if p.notifier != nil {
		ev := IndexCompleteEvent(result)
		if err := p.notifier.IndexCompleted(ctx, ev); err != nil {
			p.logger.Warn("index-complete notification failed", "generation", gen, "error", err)
		}
	}
	return result, nil
}

func (p *Pipeline) PendingDocs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.PendingDocs()
}

// Run commits pending documents every commit interval and whenever Add
// reports a full buffer. On shutdown it makes one last commit.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("commit loop started",
		"interval", p.commitInterval,
		"max_pending_docs", p.maxPendingDocs,
	)
	for {
		var tick <-chan time.Time
		if p.commitInterval > 0 {
			tick = p.clock.After(p.commitInterval)
		}
		select {
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx), "shutdown")
			p.logger.Info("commit loop stopped")
			return nil
		case <-tick:
			p.flush(ctx, "interval")
		case <-p.kick:
			p.flush(ctx, "limit")
		}
	}
}

func (p *Pipeline) flush(ctx context.Context, reason string) {
	if p.PendingDocs() == 0 {
		return
	}
	res, err := p.Commit(ctx)
	if err != nil {
		p.logger.Error("scheduled commit failed", "reason", reason, "error", err)
		return
	}
	p.logger.Info("scheduled commit", "reason", reason, "generation", res.Generation, "docs", res.Docs)
}
