package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

// Writer buffers documents and turns them into a segment on Commit.
// Documents get dense, increasing ids that stay valid across commits.
type Writer struct {
	mu      sync.Mutex
	ix      *Index
	builder *index.SegmentBuilder
	nextDoc uint32
	logger  *slog.Logger
}

// AddDocument buffers doc and returns its id. The document is not visible
// until it is committed and the index is reloaded.
func (w *Writer) AddDocument(doc *document.Document) (uint32, error) {
	if doc.Schema() != w.ix.schema {
		w.ix.rejected()
		return 0, apperrors.ErrSchemaMismatch
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextDoc
	if err := w.builder.AddDocument(id, doc.Clone()); err != nil {
		w.ix.rejected()
		return 0, err
	}
	w.nextDoc++
	if m := w.ix.metrics; m != nil {
		m.DocsIndexedTotal.Inc()
		m.PendingDocs.Set(float64(w.builder.DocCount()))
	}
	return id, nil
}

// AddJSON decodes a single JSON record against the index schema and adds it.
func (w *Writer) AddJSON(data []byte) (uint32, error) {
	doc, err := document.DecodeJSON(w.ix.schema, data)
	if err != nil {
		w.ix.rejected()
		return 0, err
	}
	return w.AddDocument(doc)
}

func (w *Writer) AddJSONString(s string) (uint32, error) {
	return w.AddJSON([]byte(s))
}

// Commit makes every buffered document durable as one new generation and
// returns its number. On failure the buffer is kept so the commit can be
// retried.
func (w *Writer) Commit(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ix := w.ix
	ix.commitMu.Lock()
	defer ix.commitMu.Unlock()

	start := time.Now()
	committed := ix.committed.Load()
	if w.builder.BaseDoc() != committed.NumDocs() {
		ix.commitFailed()
		return 0, fmt.Errorf("%w: writer starts at doc %d but the index holds %d docs",
			apperrors.ErrCommitFailed, w.builder.BaseDoc(), committed.NumDocs())
	}

	number := committed.Number + 1
	seg := w.builder.Freeze(number)
	// An empty segment is still persisted so the generation number survives
	// a restart; it is left out of the published segment list.
	if err := ix.store.Persist(ctx, seg); err != nil {
		ix.commitFailed()
		w.logger.Error("commit failed",
			"generation", number,
			"docs", seg.NumDocs(),
			"store", ix.store.Name(),
			"error", err,
		)
		return 0, fmt.Errorf("%w: persisting generation %d: %w", apperrors.ErrCommitFailed, number, err)
	}
	next := index.NewGeneration(number, committed.Segments)
	if seg.NumDocs() > 0 {
		next = committed.Append(number, seg)
	}
	ix.committed.Store(next)
	w.builder.Reset(next.NumDocs())

	if m := ix.metrics; m != nil {
		m.CommitsTotal.WithLabelValues("success").Inc()
		m.CommitDuration.Observe(time.Since(start).Seconds())
		m.PendingDocs.Set(0)
	}
	w.logger.Info("commit completed",
		"generation", number,
		"docs", seg.NumDocs(),
		"total_docs", next.NumDocs(),
		"duration", time.Since(start),
	)
	return number, nil
}

// Rollback discards the buffer and rewinds the id counter to the committed
// document count.
func (w *Writer) Rollback() {
	w.mu.Lock()
	defer w.mu.Unlock()
	base := w.ix.committed.Load().NumDocs()
	dropped := w.builder.DocCount()
	w.builder.Reset(base)
	w.nextDoc = base
	if m := w.ix.metrics; m != nil {
		m.PendingDocs.Set(0)
	}
	w.logger.Info("writer rolled back", "dropped", dropped, "next_doc", base)
}

// PendingDocs is the number of buffered, uncommitted documents.
func (w *Writer) PendingDocs() int {
	return w.builder.DocCount()
}

// PendingBytes approximates the memory held by the buffer.
func (w *Writer) PendingBytes() int64 {
	return w.builder.Size()
}

func (w *Writer) NextDocID() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextDoc
}

func (ix *Index) rejected() {
	if ix.metrics != nil {
		ix.metrics.DocsRejectedTotal.Inc()
	}
}

func (ix *Index) commitFailed() {
	if ix.metrics != nil {
		ix.metrics.CommitsTotal.WithLabelValues("failure").Inc()
	}
}
