// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package hunt

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
	"github.com/fr4nsys/zerohunt/internal/zn"
)

// DefaultTopN is the length of the global top tables.
const DefaultTopN = 10

// AssetResolver resolves asset IDs to names. Satisfied by *zn.AssetResolver.
type AssetResolver interface {
	Resolve(ctx context.Context, assetID string) (string, error)
}

// Aggregator runs the single-threaded aggregation pass over the dispatch
// results: dedup, attribution, enrichment, and the global statistics.
type Aggregator struct {
	resolver AssetResolver
	topN     int
	log      *logger.Logger
}

// NewAggregator builds an aggregator. A nil resolver leaves asset names
// unresolved; topN <= 0 uses DefaultTopN.
func NewAggregator(resolver AssetResolver, topN int, log *logger.Logger) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{resolver: resolver, topN: topN, log: log}
}

// Aggregate merges all signature results into the final report. Signatures
// are visited in input order and matches in collection order, so the
// first-seen attribution and all orderings are reproducible. Partial and
// failed signatures contribute whatever they gathered; their status flags
// the gap. Records without an identity cannot be deduplicated and are
// counted instead of guessed at.
func (a *Aggregator) Aggregate(ctx context.Context, sigs []models.Signature, results map[string]models.SignatureResult, window models.Window) models.AggregateReport {
	report := models.AggregateReport{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Window:      window,
	}

	union := make(map[string]*models.MatchedRecord)
	var order []string

	for _, sig := range sigs {
		res, ok := results[sig.Name]
		if !ok {
			continue
		}

		summary := models.SignatureSummary{
			Name:   sig.Name,
			ID:     sig.ID,
			Status: res.Status,
			Reason: res.ErrorSummary(),
		}
		seen := make(map[string]struct{})
		missing := 0

		for _, m := range res.Matches {
			id := m.Record.Identity()
			if id == "" {
				missing++
				continue
			}
			summary.TotalRecords++
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				summary.UniqueRecords++
			}

			entry, exists := union[id]
			if !exists {
				mr := &models.MatchedRecord{
					Record:    m.Record,
					Signature: sig.Name,
					SigID:     sig.ID,
					Enriched:  Enrich(m.Record, a.resolveAssetName(ctx, m.Record.Src.AssetID)),
				}
				union[id] = mr
				order = append(order, id)
				entry = mr
			}
			addIndicator(entry, m.Kind)
		}

		if missing > 0 {
			report.MissingIdentity += missing
			if summary.Status == models.HuntStatusSuccess {
				summary.Status = models.HuntStatusPartial
				summary.Reason = strconv.Itoa(missing) + " record(s) missing identity"
			}
			a.log.Warn("records without identity excluded from union",
				"signature", sig.Name, "count", missing)
		}

		report.Signatures = append(report.Signatures, summary)
	}

	report.Records = make([]models.MatchedRecord, 0, len(order))
	for _, id := range order {
		report.Records = append(report.Records, *union[id])
	}
	sort.SliceStable(report.Records, func(i, j int) bool {
		ri, rj := report.Records[i], report.Records[j]
		if ri.Record.Timestamp != rj.Record.Timestamp {
			return ri.Record.Timestamp < rj.Record.Timestamp
		}
		return ri.Record.Identity() < rj.Record.Identity()
	})

	report.TopSourceAssets = a.topBy(report.Records, func(r models.MatchedRecord) string {
		return r.Enriched.SrcAssetName
	})
	report.TopDstPorts = a.topBy(report.Records, func(r models.MatchedRecord) string {
		return strconv.Itoa(r.Record.Dst.Port)
	})
	report.TopDstProcesses = a.topBy(report.Records, func(r models.MatchedRecord) string {
		return r.Record.Dst.ProcessName
	})

	a.log.Info("aggregation complete",
		"unique_records", len(report.Records),
		"signatures", len(report.Signatures),
		"missing_identity", report.MissingIdentity)
	return report
}

func (a *Aggregator) resolveAssetName(ctx context.Context, assetID string) string {
	if a.resolver == nil {
		return zn.UnknownAssetName
	}
	name, err := a.resolver.Resolve(ctx, assetID)
	if err != nil {
		a.log.Warn("asset name resolution failed", "asset_id", assetID, "error", err)
		return zn.UnknownAssetName
	}
	return name
}

// addIndicator records an indicator class on a union entry, keeping the
// slice deduplicated and in canonical order.
func addIndicator(mr *models.MatchedRecord, kind models.IndicatorKind) {
	for _, k := range mr.Indicators {
		if k == kind {
			return
		}
	}
	mr.Indicators = append(mr.Indicators, kind)
	sort.Slice(mr.Indicators, func(i, j int) bool {
		return indicatorRank(mr.Indicators[i]) < indicatorRank(mr.Indicators[j])
	})
}

func indicatorRank(k models.IndicatorKind) int {
	switch k {
	case models.IndicatorDomain:
		return 0
	case models.IndicatorProcess:
		return 1
	default:
		return 2
	}
}

// topBy counts the union set by key and returns the top-N entries. Ranking
// is count descending; ties break on earliest first-seen timestamp, then on
// key, so equal inputs always rank identically. Empty keys are skipped.
func (a *Aggregator) topBy(records []models.MatchedRecord, key func(models.MatchedRecord) string) []models.TopEntry {
	counts := make(map[string]*models.TopEntry)
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		e, ok := counts[k]
		if !ok {
			counts[k] = &models.TopEntry{Key: k, Count: 1, FirstSeen: r.Record.Timestamp}
			continue
		}
		e.Count++
		if r.Record.Timestamp < e.FirstSeen {
			e.FirstSeen = r.Record.Timestamp
		}
	}

	out := make([]models.TopEntry, 0, len(counts))
	for _, e := range counts {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].FirstSeen != out[j].FirstSeen {
			return out[i].FirstSeen < out[j].FirstSeen
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > a.topN {
		out = out[:a.topN]
	}
	return out
}
