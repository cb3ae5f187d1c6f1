// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package zn

import (
	"context"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
)

// DefaultPageSize matches the portal's default _limit.
const DefaultPageSize = 100

// PageFunc receives each fetched page in order. Returning an error aborts
// the fetch and surfaces the error to the Fetch caller.
type PageFunc func(items []models.ActivityRecord) error

// Fetcher drives cursor pagination over the activities endpoint with retry,
// backoff, and upstream-contract guards.
type Fetcher struct {
	client   *Client
	backoff  BackoffPolicy
	pageSize int
	log      *logger.Logger
}

// NewFetcher builds a fetcher over an existing client.
func NewFetcher(client *Client, backoff BackoffPolicy, pageSize int, log *logger.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Fetcher{client: client, backoff: backoff, pageSize: pageSize, log: log}
}

// Fetch follows the scroll cursor until exhaustion, handing each page to fn
// as it arrives so callers never hold more than one page plus their own
// accumulation. Guards enforced:
//
//   - a transient failure is retried with exponential backoff; once the
//     attempt budget is spent the error is re-classified as fatal
//   - a cursor value seen twice in the same fetch is a protocol violation
//   - a page with a cursor but zero items is retried once, then treated as
//     end of data
//   - context cancellation surfaces as a cancellation error immediately
func (f *Fetcher) Fetch(ctx context.Context, filter models.QueryFilter, fn PageFunc) error {
	seen := make(map[string]struct{})
	cursor := ""
	emptyRetried := false
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return errors.Cancelled(err)
		}

		page, err := f.fetchPage(ctx, filter, cursor)
		if err != nil {
			return err
		}
		pages++

		if len(page.Items) > 0 {
			if err := fn(page.Items); err != nil {
				return err
			}
		}

		next := page.ScrollCursor
		if next == "" {
			f.log.Debug("pagination exhausted",
				"field", string(filter.Field), "pages", pages)
			return nil
		}

		if len(page.Items) == 0 {
			if emptyRetried {
				f.log.Warn("empty page with cursor repeated, treating as end of data",
					"field", string(filter.Field), "cursor", next)
				return nil
			}
			emptyRetried = true
			f.log.Debug("empty page with cursor, retrying once",
				"field", string(filter.Field))
			continue
		}
		emptyRetried = false

		if _, dup := seen[next]; dup {
			return errors.CursorLoop(next)
		}
		seen[next] = struct{}{}
		cursor = next
	}
}

// FetchAll collects every record from every page. Convenience for callers
// that want the full result set; the dispatcher accumulates per signature.
func (f *Fetcher) FetchAll(ctx context.Context, filter models.QueryFilter) ([]models.ActivityRecord, error) {
	var out []models.ActivityRecord
	err := f.Fetch(ctx, filter, func(items []models.ActivityRecord) error {
		out = append(out, items...)
		return nil
	})
	return out, err
}

// fetchPage requests one page, absorbing transient failures with backoff.
func (f *Fetcher) fetchPage(ctx context.Context, filter models.QueryFilter, cursor string) (models.ActivityPage, error) {
	var lastErr error

	for attempt := 1; attempt <= f.backoff.MaxAttempts; attempt++ {
		page, err := f.client.ActivitiesPage(ctx, filter, cursor, f.pageSize)
		if err == nil {
			return page, nil
		}

		// Only transient failures are retried; cancellation and fatal
		// upstream errors surface as-is.
		if !errors.IsTransient(err) {
			return models.ActivityPage{}, err
		}

		lastErr = err
		if attempt == f.backoff.MaxAttempts {
			break
		}

		delay := f.backoff.Delay(attempt)
		f.log.Warn("transient upstream failure, backing off",
			"field", string(filter.Field), "attempt", attempt,
			"delay", delay.String(), "error", err)
		if err := sleep(ctx, delay); err != nil {
			return models.ActivityPage{}, errors.Cancelled(err)
		}
	}

	return models.ActivityPage{}, errors.RetriesExhausted(lastErr, f.backoff.MaxAttempts)
}
