// Package ingest runs the scheduled fetch and one-shot backfill passes over
// the city catalog. Both jobs process cities strictly sequentially with fixed
// pacing delays: the providers impose small per-minute call budgets and give
// no server-side signal to back off from.
package ingest

import (
	"context"
	"log"
	"time"

	"github.com/wxagent/weather-agent/internal/catalog"
	"github.com/wxagent/weather-agent/internal/store"
	"github.com/wxagent/weather-agent/internal/weather"
)

// Result aggregates per-city outcomes of one job run.
type Result struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Errors    int `json:"errors"`
	Inserted  int `json:"inserted"`
}

// RunRecorder persists job observability rows. May be nil.
type RunRecorder interface {
	RecordJobRun(ctx context.Context, run store.JobRun) error
}

// FetchJob is one pass over the catalog: fetch the current observation per
// city, overwrite-upsert it. Per-city failures never abort the remaining
// cities.
type FetchJob struct {
	catalog     *catalog.Catalog
	provider    weather.CurrentProvider
	store       weather.Store
	runs        RunRecorder
	pacing      time.Duration
	callTimeout time.Duration
}

func NewFetchJob(cat *catalog.Catalog, provider weather.CurrentProvider, st weather.Store, runs RunRecorder, pacing, callTimeout time.Duration) *FetchJob {
	return &FetchJob{
		catalog:     cat,
		provider:    provider,
		store:       st,
		runs:        runs,
		pacing:      pacing,
		callTimeout: callTimeout,
	}
}

// Run executes one fetch pass. Cancellation lets the current city finish,
// fetch and store write included, and then stops before the next city.
func (j *FetchJob) Run(ctx context.Context) Result {
	started := time.Now().UTC()
	cities := j.catalog.List()
	var res Result

	// Per-city work runs detached from cancellation so shutdown never
	// aborts a city mid-flight; the loop checks ctx between cities.
	cityCtx := context.WithoutCancel(ctx)

	log.Printf("fetch job: starting pass over %d cities", len(cities))

	for i, loc := range cities {
		if ctx.Err() != nil {
			log.Printf("fetch job: cancelled after %d of %d cities", i, len(cities))
			break
		}

		res.Processed++

		callCtx, cancel := context.WithTimeout(cityCtx, j.callTimeout)
		obs, err := j.provider.FetchCurrent(callCtx, loc)
		cancel()
		if err != nil {
			log.Printf("fetch job: %s: %v", loc.Name, err)
			res.Errors++
		} else if err := j.store.UpsertOverwrite(cityCtx, obs); err != nil {
			log.Printf("fetch job: storing %s: %v", loc.Name, err)
			res.Errors++
		} else {
			res.Success++
			res.Inserted++
		}

		if i < len(cities)-1 {
			sleepWithContext(ctx, j.pacing)
		}
	}

	log.Printf("fetch job: completed, success=%d errors=%d", res.Success, res.Errors)
	recordRun(cityCtx, j.runs, "fetch_current", started, res)
	return res
}

func recordRun(ctx context.Context, runs RunRecorder, name string, started time.Time, res Result) {
	if runs == nil {
		return
	}
	status := "success"
	if res.Success == 0 && res.Errors > 0 {
		status = "failed"
	}
	run := store.JobRun{
		JobName:         name,
		Status:          status,
		StartedAt:       started,
		CompletedAt:     time.Now().UTC(),
		CitiesProcessed: res.Processed,
		RecordsWritten:  res.Inserted,
	}
	if err := runs.RecordJobRun(ctx, run); err != nil {
		log.Printf("%s: recording job run: %v", name, err)
	}
}

// sleepWithContext pauses for the pacing delay unless the context ends first.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
