package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/wxagent/weather-agent/internal/agent"
	httpapi "github.com/wxagent/weather-agent/internal/api/http"
	"github.com/wxagent/weather-agent/internal/catalog"
	"github.com/wxagent/weather-agent/internal/config"
	"github.com/wxagent/weather-agent/internal/ingest"
	"github.com/wxagent/weather-agent/internal/scheduler"
	"github.com/wxagent/weather-agent/internal/store"
	"github.com/wxagent/weather-agent/internal/weather/providers"
)

func main() {
	// Load configuration. Failures here are fatal by design: a process with
	// broken config should not limp along.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// City catalog. An unreadable file aborts startup; a malformed one fails
	// open to an empty catalog inside Load.
	cat, err := catalog.Load(cfg.CitiesFile, cfg.CitiesLimit)
	if err != nil {
		log.Fatalf("failed to load city catalog: %v", err)
	}
	log.Printf("catalog: monitoring %d cities", cat.Len())

	// One store instance for the whole process, closed on every exit path.
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	live := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey)
	archive := providers.NewOpenMeteoArchiveProvider(httpClient)

	// Root context: cancelled on SIGINT/SIGTERM so in-flight jobs finish
	// their current city and stop.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetchJob := ingest.NewFetchJob(cat, live, st, st, cfg.FetchPacing, cfg.HTTPTimeout)

	// Historical backfill runs at most once per process lifetime, only
	// against an empty store.
	empty, err := st.IsEmpty(ctx)
	if err != nil {
		log.Fatalf("failed to check store contents: %v", err)
	}
	if empty {
		log.Println("store is empty, running historical backfill")
		backfill := ingest.NewBackfillJob(cat, archive, st, st, cfg.BackfillDays, cfg.BackfillPacing, 60*time.Second)
		backfill.Run(ctx)
	} else {
		log.Println("store already has data, skipping backfill")
	}

	// Initial fetch so current data is available immediately.
	fetchJob.Run(ctx)

	// Periodic fetches.
	sched := scheduler.New(cfg.FetchInterval, fetchJob)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Conversational agent; /query is disabled when no key is configured.
	router := agent.NewRouter(st, cat, live)
	var bot *agent.Bot
	if cfg.OpenAIAPIKey != "" {
		bot = agent.NewBot(cfg.OpenAIAPIKey, cfg.OpenAIModel, router)
	} else {
		log.Println("OPENAI_API_KEY not set, conversational endpoint disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:               "weather-agent",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-agent",
		})
	})

	httpapi.RegisterRoutes(app, router, bot, st)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
