// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package hunt

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
	"github.com/fr4nsys/zerohunt/internal/testutil"
	"github.com/fr4nsys/zerohunt/internal/zn"
)

// fakeFetcher dispatches each filter to a per-signature script. Domains are
// the include values, so the script keys on the first value.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    []models.QueryFilter
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	delay    time.Duration
	script   func(filter models.QueryFilter, fn zn.PageFunc) error
}

func (f *fakeFetcher) Fetch(ctx context.Context, filter models.QueryFilter, fn zn.PageFunc) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return errors.Cancelled(err)
	}

	f.mu.Lock()
	f.calls = append(f.calls, filter)
	f.mu.Unlock()

	if f.script != nil {
		return f.script(filter, fn)
	}
	return nil
}

func domainSig(t *testing.T, name, domain string) models.Signature {
	t.Helper()
	sig, err := models.NewSignature(name, "id-"+name, []string{domain}, models.Executables{}, nil)
	require.NoError(t, err)
	return sig
}

func pageOf(ids ...string) []models.ActivityRecord {
	out := make([]models.ActivityRecord, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.ActivityRecord{
			Timestamp: int64(1000 + i),
			Src:       models.SrcEndpoint{EventRecordID: id},
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Completeness and isolation
// ---------------------------------------------------------------------------

func TestDispatch_CompleteResultMap(t *testing.T) {
	f := &fakeFetcher{script: func(filter models.QueryFilter, fn zn.PageFunc) error {
		return fn(pageOf("e-" + filter.IncludeValues[0]))
	}}
	d := NewDispatcher(f, nil, 3, nil)

	sigs := []models.Signature{
		domainSig(t, "A", "a.com"),
		domainSig(t, "B", "b.com"),
		domainSig(t, "C", "c.com"),
	}
	results := d.Dispatch(context.Background(), sigs, testutil.TestWindow())

	require.Len(t, results, 3, "one result per signature, no exceptions")
	for _, sig := range sigs {
		res, ok := results[sig.Name]
		require.True(t, ok, "missing result for %s", sig.Name)
		assert.Equal(t, models.HuntStatusSuccess, res.Status)
		assert.Len(t, res.Matches, 1)
	}
}

func TestDispatch_FailureIsolation(t *testing.T) {
	f := &fakeFetcher{script: func(filter models.QueryFilter, fn zn.PageFunc) error {
		if filter.IncludeValues[0] == "bad.com" {
			return errors.FatalUpstream(http.StatusForbidden, "forbidden")
		}
		return fn(pageOf("e-" + filter.IncludeValues[0]))
	}}
	d := NewDispatcher(f, nil, 2, nil)

	results := d.Dispatch(context.Background(), []models.Signature{
		domainSig(t, "Good", "good.com"),
		domainSig(t, "Bad", "bad.com"),
		domainSig(t, "AlsoGood", "alsogood.com"),
	}, testutil.TestWindow())

	require.Len(t, results, 3)
	assert.Equal(t, models.HuntStatusSuccess, results["Good"].Status)
	assert.Equal(t, models.HuntStatusSuccess, results["AlsoGood"].Status)

	bad := results["Bad"]
	assert.Equal(t, models.HuntStatusFailed, bad.Status)
	assert.NotEmpty(t, bad.ErrorSummary())
	assert.Empty(t, bad.Matches)
}

func TestDispatch_PartialWhenSomeFiltersFail(t *testing.T) {
	sig, err := models.NewSignature("Mixed", "id-mixed",
		[]string{"mixed.com"}, models.Executables{}, []int{5938})
	require.NoError(t, err)

	f := &fakeFetcher{script: func(filter models.QueryFilter, fn zn.PageFunc) error {
		if filter.Field == models.FilterFieldDstPort {
			return errors.FatalUpstream(http.StatusBadRequest, "malformed filter")
		}
		return fn(pageOf("e1"))
	}}
	d := NewDispatcher(f, nil, 1, nil)

	results := d.Dispatch(context.Background(), []models.Signature{sig}, testutil.TestWindow())
	res := results["Mixed"]
	assert.Equal(t, models.HuntStatusPartial, res.Status)
	assert.Len(t, res.Matches, 1, "records from surviving filters are kept")
	require.Len(t, res.Outcomes, 2)
	assert.NoError(t, res.Outcomes[0].Err)
	assert.Error(t, res.Outcomes[1].Err)
}

func TestDispatch_DuplicatesDedupedWithinSignature(t *testing.T) {
	sig, err := models.NewSignature("Dup", "id-dup",
		[]string{"dup.com"}, models.Executables{}, []int{5938})
	require.NoError(t, err)

	// Every filter serves the same event twice, as if it spanned two pages.
	f := &fakeFetcher{script: func(filter models.QueryFilter, fn zn.PageFunc) error {
		if err := fn(pageOf("evt-1")); err != nil {
			return err
		}
		return fn(pageOf("evt-1"))
	}}
	d := NewDispatcher(f, nil, 1, nil)

	results := d.Dispatch(context.Background(), []models.Signature{sig}, testutil.TestWindow())
	res := results["Dup"]

	require.Len(t, res.Matches, 2, "one match per indicator class, repeats dropped")
	kinds := map[models.IndicatorKind]bool{}
	for _, m := range res.Matches {
		kinds[m.Kind] = true
	}
	assert.True(t, kinds[models.IndicatorDomain])
	assert.True(t, kinds[models.IndicatorPort])

	// Per-filter telemetry still counts every delivered record.
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 2, res.Outcomes[0].Records)
	assert.Equal(t, 2, res.Outcomes[1].Records)
}

func TestDispatch_SequentialFiltersWithinSignature(t *testing.T) {
	sig, err := models.NewSignature("S", "",
		[]string{"s.com"},
		models.Executables{Windows: []string{"s.exe"}},
		[]int{5938})
	require.NoError(t, err)

	f := &fakeFetcher{}
	d := NewDispatcher(f, nil, 1, nil)
	d.Dispatch(context.Background(), []models.Signature{sig}, testutil.TestWindow())

	require.Len(t, f.calls, 4)
	assert.Equal(t, models.FilterFieldDomain, f.calls[0].Field)
	assert.Equal(t, models.FilterFieldSrcProcess, f.calls[1].Field)
	assert.Equal(t, models.FilterFieldDstProcess, f.calls[2].Field)
	assert.Equal(t, models.FilterFieldDstPort, f.calls[3].Field)
}

// ---------------------------------------------------------------------------
// Concurrency bound
// ---------------------------------------------------------------------------

func TestDispatch_WorkerPoolBounded(t *testing.T) {
	f := &fakeFetcher{delay: 20 * time.Millisecond}
	d := NewDispatcher(f, nil, 2, nil)

	var sigs []models.Signature
	for _, n := range []string{"A", "B", "C", "D", "E", "F"} {
		sigs = append(sigs, domainSig(t, n, n+".com"))
	}
	d.Dispatch(context.Background(), sigs, testutil.TestWindow())

	assert.LessOrEqual(t, f.maxSeen.Load(), int64(2),
		"in-flight fetches must never exceed the worker bound")
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestDispatch_CancellationPreservesPartials(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var served atomic.Int64
	f := &fakeFetcher{script: func(filter models.QueryFilter, fn zn.PageFunc) error {
		if served.Add(1) == 1 {
			// First signature completes, then the caller pulls the plug.
			err := fn(pageOf("e1"))
			cancel()
			return err
		}
		return errors.Cancelled(context.Canceled)
	}}
	d := NewDispatcher(f, nil, 1, nil)

	sigs := []models.Signature{
		domainSig(t, "First", "first.com"),
		domainSig(t, "Second", "second.com"),
		domainSig(t, "Third", "third.com"),
	}
	results := d.Dispatch(ctx, sigs, testutil.TestWindow())

	require.Len(t, results, 3, "cancelled signatures still get a result entry")
	assert.Equal(t, models.HuntStatusSuccess, results["First"].Status)
	assert.Len(t, results["First"].Matches, 1, "work done before cancel is never discarded")

	for _, name := range []string{"Second", "Third"} {
		assert.Equal(t, models.HuntStatusCancelled, results[name].Status, name)
	}
}

func TestDispatch_MonotonicUnderCancellation(t *testing.T) {
	// A run that is cancelled must never report more work than a run that
	// was allowed to finish, and everything it reports must be real.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{script: func(filter models.QueryFilter, fn zn.PageFunc) error {
		return fn(pageOf("e1"))
	}}
	d := NewDispatcher(f, nil, 2, nil)

	results := d.Dispatch(ctx, []models.Signature{
		domainSig(t, "A", "a.com"),
		domainSig(t, "B", "b.com"),
	}, testutil.TestWindow())

	require.Len(t, results, 2)
	for name, res := range results {
		assert.Equal(t, models.HuntStatusCancelled, res.Status, name)
		assert.Empty(t, res.Matches, "no fetch started after cancellation")
	}
}

func TestDispatch_NoSignatures(t *testing.T) {
	d := NewDispatcher(&fakeFetcher{}, nil, 2, nil)
	assert.Empty(t, d.Dispatch(context.Background(), nil, testutil.TestWindow()))
}
