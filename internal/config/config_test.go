package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsNestedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: "9090"
  corsOrigins: ["http://localhost:3000"]
assessment:
  retention: 15m
  persistRetry:
    maxElapsed: 5s
achievements:
  - id: explorer
    threshold: 50
    title: Dental Explorer
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || len(cfg.Server.CORSOrigins) != 1 {
		t.Fatalf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Assessment.PersistRetry.MaxElapsed != "5s" {
		t.Fatalf("expected nested retry config, got %+v", cfg.Assessment.PersistRetry)
	}
	if len(cfg.Achievements) != 1 || cfg.Achievements[0].ThresholdScore != 50 {
		t.Fatalf("unexpected achievements %+v", cfg.Achievements)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty should fall back, got %v", got)
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("invalid should fall back, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
