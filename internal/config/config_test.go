package config

import (
	"testing"
	"time"
)

func TestLoadRequiresWeatherKey(t *testing.T) {
	t.Setenv("OPENWEATHERMAP_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Error("expected error without OPENWEATHERMAP_API_KEY")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENWEATHERMAP_API_KEY", "test-key")
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_MODEL", "DB_PATH", "CITIES_FILE", "CITIES_LIMIT",
		"FETCH_INTERVAL", "BACKFILL_DAYS", "FETCH_PACING", "BACKFILL_PACING",
		"HTTP_TIMEOUT", "PORT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("unexpected default model: %q", cfg.OpenAIModel)
	}
	if cfg.CitiesLimit != 100 {
		t.Errorf("unexpected default cities limit: %d", cfg.CitiesLimit)
	}
	if cfg.FetchInterval != time.Hour {
		t.Errorf("unexpected default fetch interval: %s", cfg.FetchInterval)
	}
	if cfg.BackfillDays != 60 {
		t.Errorf("unexpected default backfill days: %d", cfg.BackfillDays)
	}
	if cfg.FetchPacing != time.Second || cfg.BackfillPacing != 2*time.Second {
		t.Errorf("unexpected default pacing: %s / %s", cfg.FetchPacing, cfg.BackfillPacing)
	}
	if cfg.Port != "8080" {
		t.Errorf("unexpected default port: %q", cfg.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENWEATHERMAP_API_KEY", "test-key")
	t.Setenv("FETCH_INTERVAL", "30m")
	t.Setenv("CITIES_LIMIT", "5")
	t.Setenv("BACKFILL_DAYS", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FetchInterval != 30*time.Minute {
		t.Errorf("unexpected fetch interval: %s", cfg.FetchInterval)
	}
	if cfg.CitiesLimit != 5 {
		t.Errorf("unexpected cities limit: %d", cfg.CitiesLimit)
	}
	if cfg.BackfillDays != 14 {
		t.Errorf("unexpected backfill days: %d", cfg.BackfillDays)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("OPENWEATHERMAP_API_KEY", "test-key")
	t.Setenv("FETCH_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Error("expected error for an unparseable duration")
	}
}
