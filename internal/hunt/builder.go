// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

// Package hunt is the engine core: query construction, concurrent dispatch,
// and aggregation of matched activity into the final report.
package hunt

import (
	"strconv"

	"github.com/fr4nsys/zerohunt/internal/models"
)

// DefaultExcludedPorts is the noise floor for port hunts. Nearly everything
// talks on 80/443, so a signature listing them would flood the result set.
var DefaultExcludedPorts = []int{80, 443}

// QueryBuilder turns a signature into its executable filters. Pure and
// deterministic: the same signature and window always yield the same
// filters in the same order.
type QueryBuilder struct {
	excluded map[int]struct{}
}

// NewQueryBuilder builds a query builder with the given port noise floor.
// nil means DefaultExcludedPorts; an empty slice disables exclusion.
func NewQueryBuilder(excludedPorts []int) *QueryBuilder {
	if excludedPorts == nil {
		excludedPorts = DefaultExcludedPorts
	}
	excluded := make(map[int]struct{}, len(excludedPorts))
	for _, p := range excludedPorts {
		excluded[p] = struct{}{}
	}
	return &QueryBuilder{excluded: excluded}
}

// Build returns the filters for one signature, all sharing the hunt window.
// Stable order: domain, source process, destination process, port. Empty
// indicator sets produce no filter; all surviving ports are grouped into a
// single filter, sorted ascending.
func (b *QueryBuilder) Build(sig models.Signature, window models.Window) []models.QueryFilter {
	var filters []models.QueryFilter

	if len(sig.Domains) > 0 {
		filters = append(filters, models.QueryFilter{
			Field:         models.FilterFieldDomain,
			IncludeValues: append([]string(nil), sig.Domains...),
			Window:        window,
		})
	}

	if procs := sig.Processes(); len(procs) > 0 {
		// Activity records carry the process on whichever side ran it, so
		// the same paths are hunted as source and as destination.
		filters = append(filters,
			models.QueryFilter{
				Field:         models.FilterFieldSrcProcess,
				IncludeValues: procs,
				Window:        window,
			},
			models.QueryFilter{
				Field:         models.FilterFieldDstProcess,
				IncludeValues: append([]string(nil), procs...),
				Window:        window,
			},
		)
	}

	if ports := b.filterPorts(sig.SortedPorts()); len(ports) > 0 {
		filters = append(filters, models.QueryFilter{
			Field:         models.FilterFieldDstPort,
			IncludeValues: ports,
			Window:        window,
		})
	}

	return filters
}

func (b *QueryBuilder) filterPorts(ports []int) []string {
	var out []string
	for _, p := range ports {
		if _, skip := b.excluded[p]; skip {
			continue
		}
		out = append(out, strconv.Itoa(p))
	}
	return out
}
