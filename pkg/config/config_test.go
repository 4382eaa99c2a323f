package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Indexer.Store != StoreFile || cfg.Search.DefaultLimit != 10 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: 9000
indexer:
  store: bolt
  dataDir: /var/lib/facetsearch
  commitInterval: 2s
schema:
  path: schema.yaml
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FS_SERVER_PORT", "9100")
	t.Setenv("FS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("FS_KAFKA_MAX_RETRIES", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Indexer.Store != StoreBolt || cfg.Indexer.CommitInterval != 2*time.Second {
		t.Errorf("Indexer = %+v", cfg.Indexer)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.MaxRetries != 4 {
		t.Errorf("Kafka = %+v", cfg.Kafka)
	}
	if cfg.Schema.Path != "schema.yaml" {
		t.Errorf("Schema.Path = %q", cfg.Schema.Path)
	}
	if cfg.Postgres.Database != "facetsearch" {
		t.Errorf("unset sections should keep defaults, got %q", cfg.Postgres.Database)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Indexer.Store = "s3"
	cfg.Search.DefaultLimit = 0
	cfg.Kafka.Enabled = true
	cfg.Kafka.MaxRetries = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() accepted an invalid config")
	}
	for _, want := range []string{"server.port", "indexer.store", "search.defaultLimit", "kafka.maxRetries"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestDSN(t *testing.T) {
	dsn := Default().Postgres.DSN()
	if !strings.Contains(dsn, "dbname=facetsearch") || !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("DSN() = %q", dsn)
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	t.Setenv("FS_SERVER_PORT", "eighty")
	t.Setenv("FS_INDEXER_COMMIT_INTERVAL", "soon")
	t.Setenv("FS_REDIS_ENABLED", "true")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() accepted unparseable overrides")
	}
	for _, want := range []string{"FS_SERVER_PORT", "FS_INDEXER_COMMIT_INTERVAL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestEnvOverrideLists(t *testing.T) {
	t.Setenv("FS_SERVER_CORS_ORIGINS", " https://a.example, ,https://b.example ")
	t.Setenv("FS_SERVER_RATE_LIMIT", "50")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %q", cfg.Server.CORSOrigins)
	}
	if cfg.Server.RateLimit != 50 {
		t.Errorf("RateLimit = %d", cfg.Server.RateLimit)
	}
}
