// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

// Package app wires configuration, the API client, and the hunt engine into
// the commands the CLI exposes.
package app

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fr4nsys/zerohunt/internal/hunt"
	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
	"github.com/fr4nsys/zerohunt/internal/report"
	"github.com/fr4nsys/zerohunt/internal/signatures"
	"github.com/fr4nsys/zerohunt/internal/zn"
)

// App owns the wired hunt pipeline.
type App struct {
	cfg *Config
	log *logger.Logger

	loader     *signatures.Loader
	dispatcher *hunt.Dispatcher
	aggregator *hunt.Aggregator
}

// New wires the full pipeline from configuration. The config must already
// be validated.
func New(cfg *Config, log *logger.Logger) (*App, error) {
	client, err := zn.NewClient(cfg.API.Key,
		zn.WithBaseURL(cfg.API.BaseURL),
		zn.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		zn.WithLogger(log.Named("zn")),
	)
	if err != nil {
		return nil, err
	}

	backoff := zn.BackoffPolicy{
		MaxAttempts: cfg.API.MaxRetries,
		BaseDelay:   cfg.API.RetryDelay,
		MaxDelay:    30 * time.Second,
	}
	fetcher := zn.NewFetcher(client, backoff, cfg.API.PageSize, log.Named("fetch"))

	resolver, err := zn.NewAssetResolver(client, cfg.Hunt.AssetCacheSize, log.Named("assets"))
	if err != nil {
		return nil, err
	}

	builder := hunt.NewQueryBuilder(cfg.Hunt.ExcludedPorts)

	return &App{
		cfg:        cfg,
		log:        log,
		loader:     signatures.NewLoader(cfg.Hunt.SignaturesDir, log.Named("signatures")),
		dispatcher: hunt.NewDispatcher(fetcher, builder, cfg.Hunt.Workers, log.Named("dispatch")),
		aggregator: hunt.NewAggregator(resolver, cfg.Hunt.TopN, log.Named("aggregate")),
	}, nil
}

// Signatures returns the loaded signature repository.
func (a *App) Signatures() ([]models.Signature, error) {
	return a.loader.Load()
}

// Signature returns one signature by name or ID.
func (a *App) Signature(nameOrID string) (models.Signature, error) {
	return a.loader.LoadOne(nameOrID)
}

// RunHunt executes the full pipeline for the window and returns the report.
// Respects ctx: cancellation stops new work and returns whatever was
// gathered, flagged per signature.
func (a *App) RunHunt(ctx context.Context, window models.Window) (models.AggregateReport, error) {
	if err := window.Validate(); err != nil {
		return models.AggregateReport{}, err
	}

	sigs, err := a.loader.Load()
	if err != nil {
		return models.AggregateReport{}, err
	}

	a.log.Info("starting hunt",
		"signatures", len(sigs),
		"workers", a.cfg.Hunt.Workers,
		"from", time.UnixMilli(window.From).UTC().Format(time.RFC3339),
		"to", time.UnixMilli(window.To).UTC().Format(time.RFC3339))

	results := a.dispatcher.Dispatch(ctx, sigs, window)
	rep := a.aggregator.Aggregate(ctx, sigs, results, window)
	return rep, nil
}

// Export writes the report to the configured sinks. The console writer
// always runs; CSV only when a path is configured or overridden.
func (a *App) Export(rep models.AggregateReport, console *report.ConsoleWriter, csvPath string) error {
	if err := console.Write(rep); err != nil {
		return err
	}
	if csvPath == "" {
		csvPath = a.cfg.Export.CSVPath
	}
	if csvPath == "" {
		return nil
	}
	path, err := report.NewCSVWriter(csvPath).Write(rep)
	if err != nil {
		return err
	}
	a.log.Info("exported activities to CSV", "file", path, "records", rep.TotalUnique())
	return nil
}

// ============================================================================
// Window resolution
// ============================================================================

// timeLayouts are the accepted timestamp spellings, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ResolveWindow builds the hunt window from the --from/--to flags. Either
// flag accepts ISO-8601 (with or without zone) or epoch milliseconds; empty
// --to means now, empty --from means one week before --to.
func ResolveWindow(fromStr, toStr string, now time.Time) (models.Window, error) {
	to := now
	if toStr != "" {
		t, err := parseTimestamp(toStr)
		if err != nil {
			return models.Window{}, err
		}
		to = t
	}

	from := to.AddDate(0, 0, -7)
	if fromStr != "" {
		t, err := parseTimestamp(fromStr)
		if err != nil {
			return models.Window{}, err
		}
		from = t
	}

	w := models.NewWindow(from, to)
	if err := w.Validate(); err != nil {
		return models.Window{}, err
	}
	return w, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf(errors.CodeValidation,
		"cannot parse timestamp %q (want ISO-8601 or epoch milliseconds)", s)
}
