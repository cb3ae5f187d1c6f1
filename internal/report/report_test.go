// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fr4nsys/zerohunt/internal/models"
)

func sampleReport() models.AggregateReport {
	rec := models.ActivityRecord{
		Timestamp:   1700000000000,
		Protocol:    6,
		TrafficType: 2,
		State:       1,
		Src: models.SrcEndpoint{
			EventRecordID: "evt-1",
			IP:            "10.0.0.5",
			UserName:      "svc-backup",
			ProcessName:   "TeamViewer.exe",
		},
		Dst: models.DstEndpoint{
			FQDN:        "router.teamviewer.com",
			IP:          "185.188.32.1",
			Port:        5938,
			ProcessName: "",
		},
	}

	return models.AggregateReport{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Window:      models.Window{From: 1700000000000, To: 1700604800000},
		Records: []models.MatchedRecord{{
			Record:     rec,
			Signature:  "TeamViewer",
			SigID:      "rmm-001",
			Indicators: []models.IndicatorKind{models.IndicatorDomain, models.IndicatorPort},
			Enriched: models.EnrichedRecord{
				Record:        rec,
				ISOTimestamp:  "2023-11-14T22:13:20Z",
				SrcAssetName:  "HOST-1",
				ProtocolLabel: "TCP",
				TrafficLabel:  "outbound",
				StateLabel:    "allowed",
			},
		}},
		Signatures: []models.SignatureSummary{
			{Name: "TeamViewer", ID: "rmm-001", TotalRecords: 2, UniqueRecords: 1, Status: models.HuntStatusSuccess},
			{Name: "AnyDesk", ID: "rmm-002", Status: models.HuntStatusFailed, Reason: "[FATAL_UPSTREAM] api error 403"},
		},
		TopDstPorts: []models.TopEntry{{Key: "5938", Count: 1, FirstSeen: 1700000000000}},
	}
}

// ---------------------------------------------------------------------------
// Console
// ---------------------------------------------------------------------------

func TestConsoleWrite_ContainsSummaryAndFailures(t *testing.T) {
	var sb strings.Builder
	if err := NewConsoleWriter(&sb).Write(sampleReport()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		"Unique activities: 1",
		"TeamViewer",
		"rmm-001",
		"Top destination ports",
		"5938",
		"AnyDesk: [FATAL_UPSTREAM] api error 403",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q\n---\n%s", want, out)
		}
	}
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

func TestCSVWrite_RowShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hunt.csv")
	got, err := NewCSVWriter(path).Write(sampleReport())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got != path {
		t.Errorf("filename = %q, want %q", got, path)
	}

	f, err := os.Open(got)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 record", len(rows))
	}

	header, row := rows[0], rows[1]
	if header[0] != "iso_timestamp" || header[1] != "signature" {
		t.Errorf("priority columns first, got header %v", header[:4])
	}
	if len(row) != len(header) {
		t.Fatalf("row width %d != header width %d", len(row), len(header))
	}

	byCol := map[string]string{}
	for i, h := range header {
		byCol[h] = row[i]
	}
	checks := map[string]string{
		"iso_timestamp":  "2023-11-14T22:13:20Z",
		"signature":      "TeamViewer",
		"signature_id":   "rmm-001",
		"indicators":     "domain, port",
		"state":          "allowed",
		"src_asset_name": "HOST-1",
		"src_ip":         "10.0.0.5",
		"dst_port":       "5938",
		"protocol":       "TCP",
		"traffic_type":   "outbound",
	}
	for col, want := range checks {
		if byCol[col] != want {
			t.Errorf("column %s = %q, want %q", col, byCol[col], want)
		}
	}
}

func TestCSVWrite_UniqueFilenameIncrement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hunt.csv")
	r := sampleReport()

	first, err := NewCSVWriter(path).Write(r)
	if err != nil {
		t.Fatalf("first Write: %v", err)
	}
	second, err := NewCSVWriter(path).Write(r)
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	third, err := NewCSVWriter(path).Write(r)
	if err != nil {
		t.Fatalf("third Write: %v", err)
	}

	if first != path {
		t.Errorf("first = %q, want %q", first, path)
	}
	if want := filepath.Join(dir, "hunt_1.csv"); second != want {
		t.Errorf("second = %q, want %q", second, want)
	}
	if want := filepath.Join(dir, "hunt_2.csv"); third != want {
		t.Errorf("third = %q, want %q", third, want)
	}
}

func TestCSVWrite_EmptyUnionStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	r := models.AggregateReport{RunID: uuid.New()}

	if _, err := NewCSVWriter(path).Write(r); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "iso_timestamp,") {
		t.Errorf("header missing, got: %s", data)
	}
}
