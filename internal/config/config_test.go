package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "empleo")
	t.Setenv("DB_USER", "etl")
	t.Setenv("DB_PASSWORD", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Database.DBPort != "5432" || cfg.Database.DBSSLMode != "require" {
		t.Fatalf("wrong database defaults: %+v", cfg.Database)
	}
	if cfg.ETL.DataDir != "data/cleaned" || cfg.ETL.NormalizeWorkers != 3 {
		t.Fatalf("wrong etl defaults: %+v", cfg.ETL)
	}
	if cfg.ETL.LoadMaxRetries != 3 || cfg.ETL.LoadInitialInterval != 2*time.Second {
		t.Fatalf("wrong retry defaults: %+v", cfg.ETL)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("redis must be off by default: %+v", cfg.Redis)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_HOST", "")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, key := range []string{"DB_HOST", "DB_PASSWORD"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error must name %s: %v", key, err)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_DIR", "/srv/extracts")
	t.Setenv("NORMALIZE_WORKERS", "8")
	t.Setenv("LOAD_RETRY_INITIAL_INTERVAL", "500ms")
	t.Setenv("DB_POOL_MAX_CONNS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.ETL.DataDir != "/srv/extracts" || cfg.ETL.NormalizeWorkers != 8 {
		t.Fatalf("overrides not applied: %+v", cfg.ETL)
	}
	if cfg.ETL.LoadInitialInterval != 500*time.Millisecond {
		t.Fatalf("duration override not applied: %v", cfg.ETL.LoadInitialInterval)
	}
	if cfg.Database.PoolMaxConns != 12 {
		t.Fatalf("pool override not applied: %d", cfg.Database.PoolMaxConns)
	}
}
