package consumer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

type fakeAdder struct {
	added [][]byte
	err   error
}

func (f *fakeAdder) Add(_ context.Context, record []byte) (ingestion.AddResponse, error) {
	if f.err != nil {
		return ingestion.AddResponse{}, f.err
	}
	f.added = append(f.added, record)
	return ingestion.AddResponse{DocID: uint32(len(f.added) - 1), Pending: len(f.added)}, nil
}

func TestHandleMessage(t *testing.T) {
	s, err := schema.NewBuilder().AddTextField("title").Build()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		value   string
		addErr  error
		wantErr bool
		added   int
	}{
		{"indexed", `{"title": "Emma"}`, nil, false, 1},
		{"invalid record skipped", `not json`, nil, false, 0},
		{"unknown field skipped", `{"author": "Austen"}`, nil, false, 0},
		{"type mismatch skipped", `{"title": 1}`, fmt.Errorf("wrapped: %w", apperrors.ErrTypeMismatch), false, 0},
		{"transient failure retried", `{"title": "Emma"}`, errors.New("buffer locked"), true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adder := &fakeAdder{err: tt.addErr}
			err := HandleMessage(adder, s)(ctx, []byte("k"), []byte(tt.value))
			if (err != nil) != tt.wantErr {
				t.Errorf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(adder.added) != tt.added {
				t.Errorf("added %d records, want %d", len(adder.added), tt.added)
			}
		})
	}
}
