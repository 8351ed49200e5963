package ingest

import (
	"context"
	"log"
	"time"

	"github.com/wxagent/weather-agent/internal/catalog"
	"github.com/wxagent/weather-agent/internal/weather"
)

// BackfillJob is the one-shot historical reconciliation pass. The caller runs
// it only when the store is empty; rows it writes are never overwritten by a
// later backfill because every insert is insert-if-absent.
type BackfillJob struct {
	catalog     *catalog.Catalog
	provider    weather.RangeProvider
	store       weather.Store
	runs        RunRecorder
	days        int
	pacing      time.Duration
	callTimeout time.Duration
}

func NewBackfillJob(cat *catalog.Catalog, provider weather.RangeProvider, st weather.Store, runs RunRecorder, days int, pacing, callTimeout time.Duration) *BackfillJob {
	return &BackfillJob{
		catalog:     cat,
		provider:    provider,
		store:       st,
		runs:        runs,
		days:        days,
		pacing:      pacing,
		callTimeout: callTimeout,
	}
}

// Window returns the fixed backfill date range: ending yesterday, spanning
// the configured number of days.
func (j *BackfillJob) Window(now time.Time) (start, end time.Time) {
	end = now.UTC().AddDate(0, 0, -1)
	start = end.AddDate(0, 0, -j.days)
	return start, end
}

// Run executes the backfill across the catalog. Each city's batch is one
// transaction: a mid-batch failure rolls back only that city and the pass
// moves on.
func (j *BackfillJob) Run(ctx context.Context) Result {
	started := time.Now().UTC()
	start, end := j.Window(started)
	cities := j.catalog.List()
	var res Result

	// Same shutdown contract as the fetch pass: the in-flight city
	// completes, the loop stops before the next one.
	cityCtx := context.WithoutCancel(ctx)

	log.Printf("backfill job: starting, %d cities, window %s to %s",
		len(cities), start.Format("2006-01-02"), end.Format("2006-01-02"))

	for i, loc := range cities {
		if ctx.Err() != nil {
			log.Printf("backfill job: cancelled after %d of %d cities", i, len(cities))
			break
		}

		res.Processed++

		callCtx, cancel := context.WithTimeout(cityCtx, j.callTimeout)
		batch, err := j.provider.FetchRange(callCtx, loc, start, end)
		cancel()
		if err != nil {
			log.Printf("backfill job: %s: %v", loc.Name, err)
			res.Errors++
		} else {
			inserted, err := j.store.InsertIfAbsent(cityCtx, batch)
			if err != nil {
				log.Printf("backfill job: storing %s: %v", loc.Name, err)
				res.Errors++
			} else {
				log.Printf("backfill job: %s: %d of %d records inserted", loc.Name, inserted, len(batch))
				res.Success++
				res.Inserted += inserted
			}
		}

		// Archive calls are heavier than live calls; coarser pacing.
		if i < len(cities)-1 {
			sleepWithContext(ctx, j.pacing)
		}
	}

	log.Printf("backfill job: completed, success=%d errors=%d inserted=%d", res.Success, res.Errors, res.Inserted)
	recordRun(cityCtx, j.runs, "backfill_history", started, res)
	return res
}
