// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
)

// FilterField identifies a queryable field on the network activity API.
type FilterField string

const (
	FilterFieldDomain     FilterField = "dstAsset"
	FilterFieldSrcProcess FilterField = "srcProcessPath"
	FilterFieldDstProcess FilterField = "dstProcessPath"
	FilterFieldDstPort    FilterField = "dstPort"
)

// IndicatorKind names the class of signature indicator a filter or a matched
// record came from. Used for per-record attribution in the report.
type IndicatorKind string

const (
	IndicatorDomain  IndicatorKind = "domain"
	IndicatorProcess IndicatorKind = "process"
	IndicatorPort    IndicatorKind = "port"
)

// Kind maps a filter field back to its indicator class.
func (f FilterField) Kind() IndicatorKind {
	switch f {
	case FilterFieldDomain:
		return IndicatorDomain
	case FilterFieldSrcProcess, FilterFieldDstProcess:
		return IndicatorProcess
	default:
		return IndicatorPort
	}
}

// Window is a half-open [From, To) time range in epoch milliseconds.
type Window struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// NewWindow builds a window from two instants, truncating to milliseconds.
func NewWindow(from, to time.Time) Window {
	return Window{From: from.UnixMilli(), To: to.UnixMilli()}
}

// Contains reports whether ts (epoch ms) falls inside the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.From && ts < w.To
}

// Validate checks the window is non-empty and well-ordered.
func (w Window) Validate() error {
	if w.From <= 0 || w.To <= 0 {
		return errors.New(errors.CodeValidation, "window bounds must be positive epoch milliseconds")
	}
	if w.From >= w.To {
		return errors.Newf(errors.CodeValidation, "window from (%d) must precede to (%d)", w.From, w.To)
	}
	return nil
}

// Executables lists a signature's process path indicators per platform.
type Executables struct {
	Windows []string `yaml:"Windows" json:"windows,omitempty"`
	Linux   []string `yaml:"Linux" json:"linux,omitempty"`
	MacOS   []string `yaml:"MacOS" json:"macos,omitempty"`
}

// All returns the union of all platform process paths, deduplicated,
// preserving the Windows, Linux, MacOS declaration order.
func (e Executables) All() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{e.Windows, e.Linux, e.MacOS} {
		for _, p := range group {
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Empty reports whether no platform lists any process path.
func (e Executables) Empty() bool {
	return len(e.All()) == 0
}

// Signature is one RMM tool definition: a name, a stable ID, and up to three
// indicator sets (domains, process paths, destination ports). Immutable after
// construction; NewSignature is the only constructor and rejects definitions
// that could never match anything.
type Signature struct {
	Name        string      `json:"name"`
	ID          string      `json:"id"`
	Domains     []string    `json:"domains,omitempty"`
	Executables Executables `json:"executables,omitempty"`
	Ports       []int       `json:"ports,omitempty"`
}

// NewSignature validates and builds a Signature. At least one indicator set
// must be non-empty and every port must be in 1-65535.
func NewSignature(name, id string, domains []string, execs Executables, ports []int) (Signature, error) {
	if name == "" {
		return Signature{}, errors.InvalidSignature(name, "name is required")
	}
	if len(domains) == 0 && execs.Empty() && len(ports) == 0 {
		return Signature{}, errors.InvalidSignature(name, "no indicator sets; signature could never match")
	}
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return Signature{}, errors.InvalidSignature(name, fmt.Sprintf("port %d out of range 1-65535", p))
		}
	}
	return Signature{
		Name:        name,
		ID:          id,
		Domains:     domains,
		Executables: execs,
		Ports:       ports,
	}, nil
}

// Processes returns the cross-platform union of process path indicators.
func (s Signature) Processes() []string {
	return s.Executables.All()
}

// SortedPorts returns the ports in ascending order without mutating the
// signature. Query construction needs a stable order.
func (s Signature) SortedPorts() []int {
	out := make([]int, len(s.Ports))
	copy(out, s.Ports)
	sort.Ints(out)
	return out
}

// QueryFilter is a single executable query against the activity API: a field,
// its include/exclude values, and the shared hunt window. Built only by the
// query builder; the fetcher consumes it as-is.
type QueryFilter struct {
	Field         FilterField `json:"field"`
	IncludeValues []string    `json:"includeValues"`
	ExcludeValues []string    `json:"excludeValues,omitempty"`
	Window        Window      `json:"window"`
}

// Kind returns the indicator class this filter searches for.
func (q QueryFilter) Kind() IndicatorKind {
	return q.Field.Kind()
}
