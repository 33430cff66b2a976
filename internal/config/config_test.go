package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("FLEETOPS_IDS_SECRET", "0123456789abcdef-ids")
	t.Setenv("FLEETOPS_SESSION_SECRET", "0123456789abcdef-session")
}

func TestLoadDefaults(t *testing.T) {
	setSecrets(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "fleetops-api" || cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg.App)
	}
	if cfg.Session.TTL != 12*time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.Session.TTL)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("kafka must be disabled by default, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Production() {
		t.Fatalf("default env must not be production")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	setSecrets(t)
	t.Setenv("FLEETOPS_APP_ENV", "production")
	t.Setenv("FLEETOPS_HTTP_ADDR", ":9999")
	t.Setenv("FLEETOPS_SESSION_TTL", "45m")
	t.Setenv("FLEETOPS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FLEETOPS_RATE_LIMIT_BURST", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Production() || cfg.HTTP.Addr != ":9999" || cfg.Session.TTL != 45*time.Minute || cfg.RateLimit.Burst != 7 {
		t.Fatalf("environment not applied: %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "FLEETOPS_IDS_SECRET=file-secret-for-ids-0001\nFLEETOPS_SESSION_SECRET=file-secret-for-sessions\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("FLEETOPS_IDS_SECRET", "")
	t.Setenv("FLEETOPS_SESSION_SECRET", "")
	os.Unsetenv("FLEETOPS_IDS_SECRET")
	os.Unsetenv("FLEETOPS_SESSION_SECRET")

	cfg, err := Load(filepath.Join(dir, "missing.env"), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IDs.Secret != "file-secret-for-ids-0001" {
		t.Fatalf("env file not loaded: %q", cfg.IDs.Secret)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("FLEETOPS_IDS_SECRET", "short")
	t.Setenv("FLEETOPS_SESSION_SECRET", "short")
	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"ids.secret", "session.secret", "must differ"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}

	cfg := AppConfig{
		IDs:      IDSettings{Secret: "0123456789abcdef-ids"},
		Session:  SessionSettings{Secret: "0123456789abcdef-session", TTL: time.Hour},
		Postgres: PostgresSettings{DSN: "postgres://x"},
		Kafka:    KafkaSettings{Brokers: []string{"k:9092"}},
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "audit_topic") {
		t.Fatalf("expected audit topic error, got %v", err)
	}
}
