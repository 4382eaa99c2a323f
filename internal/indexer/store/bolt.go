package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/segment"
)

var bucketSegments = []byte("segments")

// Bolt keeps encoded segments in a single bbolt file keyed by generation.
type Bolt struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating bolt directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSegments)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bolt buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

func generationKey(gen uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, gen)
	return key
}

func (b *Bolt) Persist(ctx context.Context, seg *index.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := segment.Encode(seg)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSegments).Put(generationKey(seg.Generation()), data)
	})
}

// Load returns segments in key order, which is generation order since keys
// are big-endian.
func (b *Bolt) Load(ctx context.Context) ([]*index.Segment, error) {
	var segs []*index.Segment
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSegments).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			seg, err := segment.Decode(v)
			if err != nil {
				return fmt.Errorf("generation %d: %w", binary.BigEndian.Uint64(k), err)
			}
			segs = append(segs, seg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return segs, nil
}

func (b *Bolt) Name() string { return "bolt" }

func (b *Bolt) Close() error {
	return b.db.Close()
}
