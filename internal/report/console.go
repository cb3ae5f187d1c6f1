// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

// Package report renders the final aggregate report. Sinks only read the
// report; nothing here feeds back into the engine.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fr4nsys/zerohunt/internal/models"
)

// ConsoleWriter renders a human-readable summary to w.
type ConsoleWriter struct {
	w io.Writer
}

// NewConsoleWriter builds a console sink.
func NewConsoleWriter(w io.Writer) *ConsoleWriter {
	return &ConsoleWriter{w: w}
}

// Write renders the report: run header, per-signature table, the global
// top tables, and the failure list.
func (c *ConsoleWriter) Write(r models.AggregateReport) error {
	fmt.Fprintf(c.w, "Hunt %s\n", r.RunID)
	fmt.Fprintf(c.w, "Window: %s .. %s\n",
		time.UnixMilli(r.Window.From).UTC().Format(time.RFC3339),
		time.UnixMilli(r.Window.To).UTC().Format(time.RFC3339))
	fmt.Fprintf(c.w, "Unique activities: %d across %d signatures\n",
		r.TotalUnique(), len(r.Signatures))
	if r.MissingIdentity > 0 {
		fmt.Fprintf(c.w, "Records dropped for missing identity: %d\n", r.MissingIdentity)
	}
	fmt.Fprintln(c.w)

	c.signatureTable(r)
	c.topTable("Top source assets", r.TopSourceAssets)
	c.topTable("Top destination ports", r.TopDstPorts)
	c.topTable("Top destination processes", r.TopDstProcesses)

	if failed := r.FailedSignatures(); len(failed) > 0 {
		fmt.Fprintln(c.w, "Signatures with incomplete results:")
		for _, s := range failed {
			reason := s.Reason
			if reason == "" {
				reason = string(s.Status)
			}
			fmt.Fprintf(c.w, "  %s: %s\n", s.Name, reason)
		}
		fmt.Fprintln(c.w)
	}
	return nil
}

func (c *ConsoleWriter) signatureTable(r models.AggregateReport) {
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNATURE\tID\tMATCHES\tUNIQUE\tSTATUS")
	for _, s := range r.Signatures {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			s.Name, s.ID, s.TotalRecords, s.UniqueRecords, s.Status)
	}
	_ = tw.Flush()
	fmt.Fprintln(c.w)
}

func (c *ConsoleWriter) topTable(title string, entries []models.TopEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(c.w, "%s:\n", title)
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	for i, e := range entries {
		fmt.Fprintf(tw, "  %d.\t%s\t%d\n", i+1, e.Key, e.Count)
	}
	_ = tw.Flush()
	fmt.Fprintln(c.w)
}

// indicatorList renders the indicator kinds of one record for display.
func indicatorList(kinds []models.IndicatorKind) string {
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, ", ")
}
