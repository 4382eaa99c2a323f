package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/logger"
)

var (
	appName = "fts"
	appSha  = "populated-at-link-time"
	json    = jsoniter.ConfigCompatibleWithStandardLibrary
)

// maxLineBytes bounds one JSONL record.
const maxLineBytes = 4 << 20

func main() {
	if err := makeApp().Run(os.Args); err != nil {
		slog.Error("fts failed", "error", err)
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Usage = "index JSON records and run faceted full-text queries"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "schema",
			Value:  "configs/schema.yaml",
			EnvVar: "FTS_SCHEMA",
			Usage:  "YAML file listing the index fields",
		},
		cli.StringFlag{
			Name:   "data",
			Value:  "./data",
			EnvVar: "FTS_DATA_DIR",
			Usage:  "directory holding the committed segments",
		},
		cli.StringFlag{
			Name:   "store",
			Value:  config.StoreFile,
			EnvVar: "FTS_STORE",
			Usage:  "segment store inside the data directory (file or bolt)",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "warn",
			EnvVar: "FTS_LOG_LEVEL",
			Usage:  "debug, info, warn or error",
		},
	}
	app.Before = func(c *cli.Context) error {
		slog.SetDefault(logger.New(os.Stderr, c.String("log-level"), "text"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "index",
			Usage:     "add JSONL records to the index and commit them",
			ArgsUsage: "FILE... (use - for stdin)",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "batch",
					Value: 10000,
					Usage: "commit after this many records",
				},
				cli.BoolFlag{
					Name:  "skip-invalid",
					Usage: "log and skip records that do not match the schema",
				},
			},
			Action: runIndex,
		},
		{
			Name:      "search",
			Usage:     "run a query and print the ranked hits as JSON",
			ArgsUsage: "QUERY",
			Flags: []cli.Flag{
				cli.StringSliceFlag{
					Name:  "field",
					Usage: "field to search, repeatable (default: every indexed text field)",
				},
				cli.StringSliceFlag{
					Name:  "filter",
					Usage: "facet filter as field=/path, repeatable",
				},
				cli.StringSliceFlag{
					Name:  "facet",
					Usage: "facet prefix to count as field=/path, repeatable",
				},
				cli.IntFlag{
					Name:  "nhits",
					Value: 10,
					Usage: "number of hits to print",
				},
			},
			Action: runSearch,
		},
		{
			Name:   "stats",
			Usage:  "print the committed generation and document count",
			Action: runStats,
		},
	}
	return app
}

func openIndex(ctx context.Context, c *cli.Context) (*indexer.Index, error) {
	s, err := schema.Load(c.GlobalString("schema"))
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	cfg.Indexer.DataDir = c.GlobalString("data")
	cfg.Indexer.Store = c.GlobalString("store")
	if cfg.Indexer.Store != config.StoreFile && cfg.Indexer.Store != config.StoreBolt {
		return nil, fmt.Errorf("unsupported store %q: fts works on file or bolt stores", cfg.Indexer.Store)
	}
	if err := os.MkdirAll(cfg.Indexer.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ix, err := indexer.Open(ctx, s, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return ix, nil
}

func runIndex(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("index needs at least one input file", 2)
	}
	ctx := context.Background()
	ix, err := openIndex(ctx, c)
	if err != nil {
		return err
	}
	defer ix.Close()
	w, err := ix.Writer()
	if err != nil {
		return err
	}

	var added, skipped int
	for _, path := range c.Args() {
		n, s, err := indexFile(ctx, w, path, c.Int("batch"), c.Bool("skip-invalid"))
		added += n
		skipped += s
		if err != nil {
			w.Rollback()
			return err
		}
	}
	gen, err := w.Commit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "indexed %d records (%d skipped), generation %d\n", added, skipped, gen)
	return nil
}

func indexFile(ctx context.Context, w *indexer.Writer, path string, batch int, skipInvalid bool) (added, skipped int, err error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, 0, err
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		record := strings.TrimSpace(sc.Text())
		if record == "" {
			continue
		}
		if _, err := w.AddJSONString(record); err != nil {
			if skipInvalid {
				slog.Warn("skipping record", "file", path, "line", line, "error", err)
				skipped++
				continue
			}
			return added, skipped, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		added++
		if batch > 0 && w.PendingDocs() >= batch {
			if _, err := w.Commit(ctx); err != nil {
				return added, skipped, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return added, skipped, fmt.Errorf("reading %s: %w", path, err)
	}
	return added, skipped, nil
}

type hitOutput struct {
	Score  float32 `json:"score"`
	Doc    uint32  `json:"doc"`
	Fields any     `json:"fields"`
}

type searchOutput struct {
	Count  int                          `json:"count"`
	Items  []hitOutput                  `json:"items"`
	Facets map[string]map[string]uint64 `json:"facets,omitempty"`
}

func runSearch(c *cli.Context) error {
	filters, err := parsePairs(c.StringSlice("filter"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	facets, err := parsePairs(c.StringSlice("facet"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	ix, err := openIndex(context.Background(), c)
	if err != nil {
		return err
	}
	defer ix.Close()

	fields := c.StringSlice("field")
	if len(fields) == 0 {
		for _, f := range ix.Schema().Fields() {
			if f.Type == schema.TypeText && f.Indexed {
				fields = append(fields, f.Name)
			}
		}
	}
	q, err := ix.ParseQuery(strings.Join(c.Args(), " "), fields, filters)
	if err != nil {
		return err
	}
	searcher := ix.Searcher()
	res, err := searcher.Search(q, c.Int("nhits"), facets)
	if err != nil {
		return err
	}

	out := searchOutput{Count: res.Count, Items: make([]hitOutput, 0, len(res.Items))}
	if len(facets) > 0 {
		out.Facets = res.Facets
	}
	for _, h := range res.Items {
		doc, err := searcher.Doc(h.Doc)
		if err != nil {
			return err
		}
		out.Items = append(out.Items, hitOutput{Score: h.Score, Doc: h.Doc, Fields: doc})
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runStats(c *cli.Context) error {
	ix, err := openIndex(context.Background(), c)
	if err != nil {
		return err
	}
	defer ix.Close()
	searcher := ix.Searcher()
	fmt.Fprintf(c.App.Writer, "generation %d, %d docs in %d segments (%s store)\n",
		searcher.Generation(), searcher.NumDocs(), searcher.NumSegments(), ix.StoreName())
	return nil
}

// parsePairs turns field=value flags into a map of field to values.
func parsePairs(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string][]string)
	for _, p := range pairs {
		field, value, ok := strings.Cut(p, "=")
		if !ok || field == "" || value == "" {
			return nil, fmt.Errorf("expected field=/path, got %q", p)
		}
		out[field] = append(out[field], value)
	}
	return out, nil
}
