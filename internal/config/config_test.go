package config

import (
	"testing"
	"time"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Feed.BaseURL == "" {
		t.Error("feed base URL must be set")
	}
	if cfg.Schedule.Timezone != "Europe/London" {
		t.Errorf("timezone = %q, want Europe/London", cfg.Schedule.Timezone)
	}
	if cfg.Schedule.Ingest != "0 2 * * *" {
		t.Errorf("ingest spec = %q", cfg.Schedule.Ingest)
	}
	if cfg.Schedule.Rating != "0 */6 * * *" {
		t.Errorf("rating spec = %q", cfg.Schedule.Rating)
	}

	if cfg.Rating.BatchSize != 5 {
		t.Errorf("batch size = %d, want 5", cfg.Rating.BatchSize)
	}
	if got := cfg.Rating.DelayBetweenContracts(); got != 2*time.Second {
		t.Errorf("delay between contracts = %v, want 2s", got)
	}
	if got := cfg.Rating.DelayBetweenBatches(); got != 5*time.Second {
		t.Errorf("delay between batches = %v, want 5s", got)
	}

	if len(cfg.Keywords.Default) != 1 || cfg.Keywords.Default[0] != "data" {
		t.Errorf("default keywords = %v, want [data]", cfg.Keywords.Default)
	}
	if len(cfg.Keywords.InitialImport) != 5 {
		t.Errorf("initial import keywords = %v, want 5 entries", cfg.Keywords.InitialImport)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Rating.AnthropicModel != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q, want expanded env value", cfg.Rating.AnthropicModel)
	}
}

func TestLoadMissingOverrideFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing override file")
	}
}
