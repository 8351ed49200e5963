package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	OpenAIAPIKey      string
	OpenAIModel       string

	DatabasePath string

	// City catalog source.
	CitiesFile  string
	CitiesLimit int

	// FetchInterval controls how often the scheduled fetch job runs.
	FetchInterval time.Duration

	// BackfillDays is the length of the one-shot historical window.
	BackfillDays int

	// Fixed pacing delays between consecutive provider calls. The archive
	// pacing is coarser because archive calls are heavier.
	FetchPacing    time.Duration
	BackfillPacing time.Duration

	// HTTPTimeout bounds each outbound provider call.
	HTTPTimeout time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
// A missing OpenWeatherMap key is fatal: without it the pipeline cannot
// ingest anything.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHERMAP_API_KEY")
	if cfg.OpenWeatherAPIKey == "" {
		return nil, fmt.Errorf("OPENWEATHERMAP_API_KEY is required")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getenvDefault("OPENAI_MODEL", "gpt-4o-mini")

	cfg.DatabasePath = getenvDefault("DB_PATH", "data/weather.db")
	cfg.CitiesFile = getenvDefault("CITIES_FILE", "data/cities.json")
	cfg.CitiesLimit = getenvInt("CITIES_LIMIT", 100)

	var err error
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	cfg.BackfillDays = getenvInt("BACKFILL_DAYS", 60)
	if cfg.FetchPacing, err = getenvDuration("FETCH_PACING", "1s"); err != nil {
		return nil, err
	}
	if cfg.BackfillPacing, err = getenvDuration("BACKFILL_PACING", "2s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	raw := getenvDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
