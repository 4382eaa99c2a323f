package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	commitCh  chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	r.mu.Unlock()
	r.commitCh <- struct{}{}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerRetriesBeforeCommitting(t *testing.T) {
	r := &fakeReader{
		pending: []kafka.Message{
			{Topic: "document-ingest", Offset: 10, Value: []byte(`{"title":"a"}`)},
			{Topic: "document-ingest", Offset: 11, Value: []byte(`{"title":"b"}`)},
		},
		commitCh: make(chan struct{}, 2),
	}
	var handled []string
	failures := 2
	c := newConsumer(r, "document-ingest", 5, func(_ context.Context, _, value []byte) error {
		if failures > 0 {
			failures--
			return errors.New("writer busy")
		}
		handled = append(handled, string(value))
		return nil
	})
	c.retry.InitialDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	for range 2 {
		select {
		case <-r.commitCh:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for commits")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if len(handled) != 2 || handled[0] != `{"title":"a"}` {
		t.Errorf("handled = %v", handled)
	}
	if len(r.committed) != 2 || r.committed[0] != 10 || r.committed[1] != 11 {
		t.Errorf("committed offsets = %v, want [10 11]", r.committed)
	}
}

func TestConsumerStopsWhenRetriesRunOut(t *testing.T) {
	r := &fakeReader{
		pending:  []kafka.Message{{Offset: 3}},
		commitCh: make(chan struct{}, 1),
	}
	attempts := 0
	c := newConsumer(r, "document-ingest", 3, func(context.Context, []byte, []byte) error {
		attempts++
		return errors.New("store down")
	})
	c.retry.InitialDelay = time.Millisecond

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail once retries are exhausted")
	}
	if attempts != 3 {
		t.Errorf("handler ran %d times, want 3", attempts)
	}
	if len(r.committed) != 0 {
		t.Errorf("offsets committed for a failed message: %v", r.committed)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "index.complete")
	err := p.Publish(context.Background(), Event{Key: "7", Value: map[string]int{"generation": 7}})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "7" || string(msg.Value) != `{"generation":7}` {
		t.Errorf("message = %s/%s", msg.Key, msg.Value)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "application/json" {
		t.Errorf("headers = %v", msg.Headers)
	}

	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("empty Publish() error: %v", err)
	}
	if err := p.Publish(context.Background(), Event{Key: "x", Value: make(chan int)}); err == nil {
		t.Error("unencodable value should fail")
	}
	w.err = errors.New("leader not available")
	if err := p.Publish(context.Background(), Event{Key: "8", Value: 8}); !errors.Is(err, w.err) {
		t.Errorf("Publish() error = %v, want wrapped writer error", err)
	}
}
