package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "STORE_BACKEND", "DATABASE_URL", "MONGO_URI", "MONGO_DATABASE",
		"REDIS_URL", "ALLOWED_ORIGINS", "AUTH_SERVICE_URL", "SYNC_SERVICE_URL",
		"ARCHIVE_INTERVAL", "GAME_TITLES", "CLOUDFLARE_ACCOUNT_ID",
		"R2_ACCESS_KEY_ID", "R2_ACCESS_KEY_SECRET", "R2_BUCKET_NAME", "CDN_BASE_URL",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("GAME_SERVICE_TOKEN", "secret")
	t.Setenv("STORE_BACKEND", "memory")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != "5200" {
		t.Errorf("Port = %q, want 5200", cfg.Port)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.ArchiveInterval != time.Hour {
		t.Errorf("ArchiveInterval = %s, want 1h", cfg.ArchiveInterval)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.GameTitles != nil {
		t.Errorf("GameTitles = %v, want nil", cfg.GameTitles)
	}
	if cfg.R2.Enabled() {
		t.Error("R2 should be disabled without credentials")
	}
}

func TestFromEnvRequiresToken(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GAME_SERVICE_TOKEN", "")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for missing GAME_SERVICE_TOKEN")
	}
}

func TestFromEnvPostgresNeedsDSN(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for postgres without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/progression")
	if _, err := FromEnv(); err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"backend":  {"STORE_BACKEND", "cassandra"},
		"port":     {"PORT", "http"},
		"interval": {"ARCHIVE_INTERVAL", "soon"},
		"negative": {"ARCHIVE_INTERVAL", "-5m"},
		"titles":   {"GAME_TITLES", "chess"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%q", kv[0], kv[1])
			}
		})
	}
}

func TestFromEnvParsesLists(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("GAME_TITLES", "Chess=Grand Chess, go = Go Board")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.GameTitles["chess"] != "Grand Chess" || cfg.GameTitles["go"] != "Go Board" {
		t.Errorf("GameTitles = %v", cfg.GameTitles)
	}
}
