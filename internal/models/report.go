// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package models

import (
	"time"

	"github.com/google/uuid"
)

// HuntStatus is the terminal state of one signature's hunt.
type HuntStatus string

const (
	// HuntStatusSuccess means every filter for the signature completed.
	HuntStatusSuccess HuntStatus = "success"
	// HuntStatusPartial means some filters completed and some failed, or
	// records were dropped for missing identity.
	HuntStatusPartial HuntStatus = "partial"
	// HuntStatusFailed means no filter for the signature produced results.
	HuntStatusFailed HuntStatus = "failed"
	// HuntStatusCancelled means the hunt was stopped by the caller before
	// this signature completed.
	HuntStatusCancelled HuntStatus = "cancelled"
)

// FilterOutcome records how a single filter execution ended.
type FilterOutcome struct {
	Field   FilterField `json:"field"`
	Records int         `json:"records"`
	Err     error       `json:"-"`
}

// Match pairs a fetched record with the indicator class whose filter
// matched it. One underlying event can appear in several matches when
// multiple filters hit it.
type Match struct {
	Record ActivityRecord `json:"record"`
	Kind   IndicatorKind  `json:"kind"`
}

// SignatureResult is the complete outcome of hunting one signature: the
// matches its filters produced, deduplicated per record identity and
// indicator class, the per-filter outcomes, and the rolled-up status.
// The dispatcher guarantees one SignatureResult per input signature,
// whatever happened.
type SignatureResult struct {
	Signature Signature       `json:"signature"`
	Matches   []Match         `json:"matches"`
	Outcomes  []FilterOutcome `json:"outcomes"`
	Status    HuntStatus      `json:"status"`
	Err       error           `json:"-"`
}

// ErrorSummary renders the result error for reports, empty on success.
func (r SignatureResult) ErrorSummary() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MatchedRecord is one unique activity in the union set: the record, the
// signature that first matched it, every indicator class that matched it
// across all signatures, and its enriched view.
type MatchedRecord struct {
	Record     ActivityRecord  `json:"record"`
	Signature  string          `json:"signature"`
	SigID      string          `json:"signatureId"`
	Indicators []IndicatorKind `json:"indicators"`
	Enriched   EnrichedRecord  `json:"enriched"`
}

// SignatureSummary is the per-signature row of the final report.
type SignatureSummary struct {
	Name          string     `json:"name"`
	ID            string     `json:"id"`
	TotalRecords  int        `json:"totalRecords"`
	UniqueRecords int        `json:"uniqueRecords"`
	Status        HuntStatus `json:"status"`
	Reason        string     `json:"reason,omitempty"`
}

// TopEntry is one row of a global top-N table. FirstSeen (epoch ms of the
// earliest contributing record) breaks count ties deterministically.
type TopEntry struct {
	Key       string `json:"key"`
	Count     int    `json:"count"`
	FirstSeen int64  `json:"firstSeen"`
}

// AggregateReport is the read-only hunt outcome handed to every sink.
type AggregateReport struct {
	RunID       uuid.UUID `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Window      Window    `json:"window"`

	// Records is the deduplicated union across all signatures, ordered by
	// timestamp ascending, identity as tie-break.
	Records []MatchedRecord `json:"records"`

	// Signatures has one summary per hunted signature, in input order.
	Signatures []SignatureSummary `json:"signatures"`

	TopSourceAssets []TopEntry `json:"topSourceAssets"`
	TopDstPorts     []TopEntry `json:"topDstPorts"`
	TopDstProcesses []TopEntry `json:"topDstProcesses"`

	// MissingIdentity counts records excluded from the union because the
	// upstream omitted src.eventRecordId.
	MissingIdentity int `json:"missingIdentity"`
}

// FailedSignatures returns the summaries whose hunts did not fully succeed.
func (r AggregateReport) FailedSignatures() []SignatureSummary {
	var out []SignatureSummary
	for _, s := range r.Signatures {
		if s.Status != HuntStatusSuccess {
			out = append(out, s)
		}
	}
	return out
}

// TotalUnique returns the size of the deduplicated union set.
func (r AggregateReport) TotalUnique() int {
	return len(r.Records)
}
