package store

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/segment"
)

// File writes one .spdx file per committed segment into a directory.
type File struct {
	dir    string
	writer *segment.Writer
}

func NewFile(dir string) *File {
	return &File{dir: dir, writer: segment.NewWriter(dir)}
}

func (f *File) Persist(ctx context.Context, seg *index.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := f.writer.Write(seg)
	return err
}

func (f *File) Load(ctx context.Context) ([]*index.Segment, error) {
	paths, err := segment.List(f.dir)
	if err != nil {
		return nil, err
	}
	segs := make([]*index.Segment, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seg, err := segment.ReadFile(p)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func (f *File) Name() string { return "file" }

func (f *File) Close() error { return nil }
