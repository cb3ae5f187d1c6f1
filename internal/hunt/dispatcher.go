// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package hunt

import (
	"context"
	"sync"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
	"github.com/fr4nsys/zerohunt/internal/zn"
)

// DefaultWorkers bounds concurrent signature hunts so a large signature
// repository cannot stampede the portal rate limits.
const DefaultWorkers = 5

// Fetcher is the paginated fetch dependency. Satisfied by *zn.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, filter models.QueryFilter, fn zn.PageFunc) error
}

// Dispatcher fans signatures out over a bounded worker pool. Each worker
// owns its SignatureResult exclusively until it is handed back, so no
// aggregation state is shared between workers.
type Dispatcher struct {
	fetcher Fetcher
	builder *QueryBuilder
	workers int
	log     *logger.Logger
}

// NewDispatcher builds a dispatcher. workers <= 0 uses DefaultWorkers.
func NewDispatcher(fetcher Fetcher, builder *QueryBuilder, workers int, log *logger.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if builder == nil {
		builder = NewQueryBuilder(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{fetcher: fetcher, builder: builder, workers: workers, log: log}
}

// Dispatch hunts every signature and returns one result per signature, keyed
// by name, whatever happened. Guarantees:
//
//   - a failure in one signature never cancels or delays siblings
//   - the map is complete: len(results) == len(sigs)
//   - on context cancellation no new filters are started, in-flight pages
//     finish normally, and everything already collected is kept with a
//     cancelled status
func (d *Dispatcher) Dispatch(ctx context.Context, sigs []models.Signature, window models.Window) map[string]models.SignatureResult {
	results := make(map[string]models.SignatureResult, len(sigs))
	if len(sigs) == 0 {
		return results
	}

	workers := d.workers
	if workers > len(sigs) {
		workers = len(sigs)
	}

	jobs := make(chan models.Signature)
	out := make(chan models.SignatureResult)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for sig := range jobs {
				out <- d.huntSignature(ctx, sig, window)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sig := range sigs {
			// Feed every signature even after cancellation; the worker
			// marks unstarted ones cancelled so the map stays complete.
			jobs <- sig
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	for res := range out {
		results[res.Signature.Name] = res
	}
	return results
}

// huntSignature runs one signature's filters sequentially and rolls the
// outcomes up into a single result.
func (d *Dispatcher) huntSignature(ctx context.Context, sig models.Signature, window models.Window) models.SignatureResult {
	res := models.SignatureResult{Signature: sig}
	log := d.log.With("signature", sig.Name)

	filters := d.builder.Build(sig, window)
	if len(filters) == 0 {
		// Can only happen when the noise floor swallowed every port.
		res.Status = models.HuntStatusSuccess
		log.Debug("no executable filters for signature")
		return res
	}

	var succeeded, failed int
	cancelled := false
	matched := make(map[string]map[models.IndicatorKind]struct{})

	for _, filter := range filters {
		if err := ctx.Err(); err != nil {
			cancelled = true
			break
		}

		outcome := models.FilterOutcome{Field: filter.Field}
		kind := filter.Kind()
		err := d.fetcher.Fetch(ctx, filter, func(items []models.ActivityRecord) error {
			for _, r := range items {
				// The same event delivered again through one indicator
				// class is dropped; identity-less records pass through
				// for the aggregator to count.
				if id := r.Identity(); id != "" {
					kinds := matched[id]
					if kinds == nil {
						kinds = make(map[models.IndicatorKind]struct{})
						matched[id] = kinds
					}
					if _, dup := kinds[kind]; dup {
						continue
					}
					kinds[kind] = struct{}{}
				}
				res.Matches = append(res.Matches, models.Match{Record: r, Kind: kind})
			}
			outcome.Records += len(items)
			return nil
		})
		outcome.Err = err
		res.Outcomes = append(res.Outcomes, outcome)

		switch {
		case err == nil:
			succeeded++
		case errors.IsCancelled(err):
			cancelled = true
			if res.Err == nil {
				res.Err = err
			}
		default:
			failed++
			if res.Err == nil {
				res.Err = err
			}
			log.Warn("filter fetch failed",
				"field", string(filter.Field), "error", err)
		}

		if cancelled {
			break
		}
	}

	switch {
	case cancelled:
		res.Status = models.HuntStatusCancelled
		if res.Err == nil {
			res.Err = errors.Cancelled(ctx.Err())
		}
	case failed == 0:
		res.Status = models.HuntStatusSuccess
	case succeeded == 0:
		res.Status = models.HuntStatusFailed
	default:
		res.Status = models.HuntStatusPartial
	}

	log.Debug("signature hunt finished",
		"status", string(res.Status), "matches", len(res.Matches))
	return res
}
