package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/postgres"
)

const createSegmentsTable = `CREATE TABLE IF NOT EXISTS fs_segments (
	generation BIGINT PRIMARY KEY,
	base_doc   BIGINT NOT NULL,
	num_docs   BIGINT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores encoded segments as rows of fs_segments.
type Postgres struct {
	client     *postgres.Client
	ownsClient bool
}

func NewPostgres(ctx context.Context, client *postgres.Client) (*Postgres, error) {
	if err := client.Migrate(ctx, createSegmentsTable); err != nil {
		return nil, err
	}
	return &Postgres{client: client}, nil
}

func (p *Postgres) Persist(ctx context.Context, seg *index.Segment) error {
	data, err := segment.Encode(seg)
	if err != nil {
		return err
	}
	return p.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO fs_segments (generation, base_doc, num_docs, data) VALUES ($1, $2, $3, $4)`,
			int64(seg.Generation()), int64(seg.BaseDoc()), int64(seg.NumDocs()), data)
		if err != nil {
			return fmt.Errorf("inserting segment %d: %w", seg.Generation(), err)
		}
		return nil
	})
}

func (p *Postgres) Load(ctx context.Context) ([]*index.Segment, error) {
	rows, err := p.client.DB.QueryContext(ctx, `SELECT generation, data FROM fs_segments ORDER BY generation`)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	var segs []*index.Segment
	for rows.Next() {
		var (
			gen  int64
			data []byte
		)
		if err := rows.Scan(&gen, &data); err != nil {
			return nil, fmt.Errorf("scanning segment row: %w", err)
		}
		seg, err := segment.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", gen, err)
		}
		segs = append(segs, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating segments: %w", err)
	}
	return segs, nil
}

func (p *Postgres) Name() string { return "postgres" }

// Close releases the connection pool when the store opened it itself.
func (p *Postgres) Close() error {
	if !p.ownsClient {
		return nil
	}
	return p.client.Close()
}
