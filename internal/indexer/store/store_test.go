package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/postgres"
)

// twoSegments returns segments for generations 1 and 2 holding docs 0-1
// and 2 respectively.
func twoSegments(t *testing.T) []*index.Segment {
	t.Helper()
	s, err := schema.NewBuilder().AddTextField("title", schema.Stored()).AddFacetField("facets").Build()
	if err != nil {
		t.Fatal(err)
	}
	b, err := index.NewSegmentBuilder(s, tokenizer.NewRegistry(), 0)
	if err != nil {
		t.Fatal(err)
	}
	add := func(id uint32, title, path string) {
		doc := document.New(s)
		_ = doc.AddText("title", title)
		_ = doc.AddFacet("facets", facet.MustFromString(path))
		if err := b.AddDocument(id, doc); err != nil {
			t.Fatal(err)
		}
	}
	add(0, "sea", "/a/b")
	add(1, "land", "/a/c")
	first := b.Freeze(1)
	b.Reset(2)
	add(2, "sky", "/d")
	return []*index.Segment{first, b.Freeze(2)}
}

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	for _, seg := range twoSegments(t) {
		if err := st.Persist(ctx, seg); err != nil {
			t.Fatalf("%s Persist(%d) error: %v", st.Name(), seg.Generation(), err)
		}
	}
	segs, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("%s Load() error: %v", st.Name(), err)
	}
	if len(segs) != 2 {
		t.Fatalf("%s Load() returned %d segments", st.Name(), len(segs))
	}
	if segs[0].Generation() != 1 || segs[1].Generation() != 2 || segs[1].BaseDoc() != 2 {
		t.Errorf("%s segments out of order", st.Name())
	}
	if p := segs[0].Postings("title", "land"); len(p) != 1 || p[0].DocID != 1 {
		t.Errorf("%s title:land = %+v", st.Name(), p)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	exerciseStore(t, NewFile(t.TempDir()))
}

func TestBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", BoltFileName)
	st, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt() error: %v", err)
	}
	exerciseStore(t, st)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	segs, err := reopened.Load(context.Background())
	if err != nil || len(segs) != 2 {
		t.Errorf("reopened Load() = %d segments, %v", len(segs), err)
	}
}

func TestPostgres(t *testing.T) {
	if os.Getenv("FS_TEST_POSTGRES") == "" {
		t.Skip("set FS_TEST_POSTGRES=1 with a reachable database to run")
	}
	ctx := context.Background()
	client, err := postgres.New(ctx, config.Default().Postgres)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer client.Close()
	if _, err := client.DB.ExecContext(ctx, `DROP TABLE IF EXISTS fs_segments`); err != nil {
		t.Fatal(err)
	}
	st, err := NewPostgres(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, st)
}

func TestOpenByKind(t *testing.T) {
	cfg := config.Default()
	cfg.Indexer.DataDir = t.TempDir()
	for _, kind := range []string{config.StoreMemory, config.StoreFile, config.StoreBolt} {
		t.Run(kind, func(t *testing.T) {
			cfg.Indexer.Store = kind
			st, err := Open(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Open(%s) error: %v", kind, err)
			}
			defer st.Close()
			if st.Name() != kind {
				t.Errorf("Name() = %q, want %q", st.Name(), kind)
			}
		})
	}
	cfg.Indexer.Store = "tape"
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("Open() accepted an unknown store kind")
	}
}
