// Package agent resolves weather questions for the conversational front end:
// a cache-first query router plus the tool-dispatch contract the LLM consumes.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wxagent/weather-agent/internal/catalog"
	"github.com/wxagent/weather-agent/internal/store"
	"github.com/wxagent/weather-agent/internal/weather"
)

// Recognized tool names.
const (
	ToolCurrentWeather = "current-weather"
	ToolHistory        = "history"
)

// DefaultHistoryDays is the history lookback when the caller does not
// specify one.
const DefaultHistoryDays = 7

// ErrorResult is a structured failure. The conversational layer always gets
// data back, never a raised error. NotFound marks an unknown city and
// Upstream marks a failed provider call; both are routing hints for the HTTP
// layer and stay out of the tool payload.
type ErrorResult struct {
	Error    string `json:"error"`
	NotFound bool   `json:"-"`
	Upstream bool   `json:"-"`
}

// MessageResult is a structured informational reply.
type MessageResult struct {
	Message string `json:"message"`
}

// Router answers the two request shapes exposed to the conversational layer.
type Router struct {
	store   weather.Store
	catalog *catalog.Catalog
	live    weather.CurrentProvider
}

func NewRouter(st weather.Store, cat *catalog.Catalog, live weather.CurrentProvider) *Router {
	return &Router{store: st, catalog: cat, live: live}
}

// CurrentWeather resolves the current weather for a city, cache-first: a
// stored row is returned verbatim with no freshness check and zero provider
// calls. On a store miss it falls back to one live call; the fallback result
// is deliberately not written back, since the next scheduled fetch captures
// it anyway.
func (r *Router) CurrentWeather(ctx context.Context, city string) any {
	obs, err := r.store.Latest(ctx, city)
	if err == nil {
		return obs
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("agent: latest lookup for %s: %v", city, err)
		return ErrorResult{Error: "failed to read stored weather data"}
	}

	loc, ok := r.catalog.Lookup(city)
	if !ok {
		return ErrorResult{Error: fmt.Sprintf("city %q is not in the monitored catalog", city), NotFound: true}
	}

	log.Printf("agent: no stored data for %s, falling back to live fetch", city)
	live, err := r.live.FetchCurrent(ctx, loc)
	if err != nil {
		log.Printf("agent: live fallback for %s: %v", city, err)
		return ErrorResult{Error: "failed to fetch live weather data", Upstream: true}
	}
	return live
}

// History returns stored observations for the last N days, newest first.
// No live fallback: history only accumulates through the pipeline.
func (r *Router) History(ctx context.Context, city string, days int) any {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := r.store.Range(ctx, city, since)
	if err != nil {
		log.Printf("agent: history lookup for %s: %v", city, err)
		return ErrorResult{Error: "failed to read weather history"}
	}
	if len(rows) == 0 {
		return MessageResult{Message: "no historical data available yet; history builds up over time"}
	}
	return rows
}

// Execute is the tool-dispatch contract: run the named tool with JSON
// arguments, return JSON. Failures come back as {"error": ...}, never as a
// Go error, so the conversational layer can always form a reply.
func (r *Router) Execute(ctx context.Context, toolName, argsJSON string) string {
	var args struct {
		City string `json:"city"`
		Days int    `json:"days"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return errorJSON(fmt.Sprintf("invalid tool arguments: %v", err))
	}
	if args.City == "" {
		return errorJSON("missing required argument: city")
	}

	log.Printf("agent: executing tool %s for %s", toolName, args.City)

	var result any
	switch toolName {
	case ToolCurrentWeather:
		result = r.CurrentWeather(ctx, args.City)
	case ToolHistory:
		result = r.History(ctx, args.City, args.Days)
	default:
		return errorJSON(fmt.Sprintf("unknown tool: %s", toolName))
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorJSON(fmt.Sprintf("encoding tool result: %v", err))
	}
	return string(raw)
}

func errorJSON(msg string) string {
	raw, err := json.Marshal(ErrorResult{Error: msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(raw)
}
