// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

// Package testutil provides shared test helpers and fixtures used across the
// zerohunt test suite: logger setup and model factories.
package testutil

import (
	"io"
	"testing"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
)

// ---------------------------------------------------------------------------
// Logger helpers
// ---------------------------------------------------------------------------

// NewTestLogger returns a logger that discards all output. It never fails.
func NewTestLogger(t testing.TB) *logger.Logger {
	t.Helper()
	log, err := logger.NewWithOutput("error", "console", io.Discard)
	if err != nil {
		t.Fatalf("testutil.NewTestLogger: %v", err)
	}
	return log
}

// ---------------------------------------------------------------------------
// Model fixtures
// ---------------------------------------------------------------------------

// TestWindow is a stable one-week hunt window.
func TestWindow() models.Window {
	return models.Window{From: 1700000000000, To: 1700604800000}
}

// TestSignature returns a fully populated signature suitable for most tests.
func TestSignature(t testing.TB) models.Signature {
	t.Helper()
	sig, err := models.NewSignature("TeamViewer", "rmm-001",
		[]string{"teamviewer.com", "*.teamviewer.com"},
		models.Executables{
			Windows: []string{"TeamViewer.exe", "TeamViewer_Service.exe"},
			Linux:   []string{"teamviewerd"},
			MacOS:   []string{"TeamViewer"},
		},
		[]int{5938})
	if err != nil {
		t.Fatalf("testutil.TestSignature: %v", err)
	}
	return sig
}

// TestRecord returns an activity record with the given identity and
// timestamp and plausible endpoint detail.
func TestRecord(id string, ts int64) models.ActivityRecord {
	return models.ActivityRecord{
		Timestamp:   ts,
		Protocol:    6,
		TrafficType: 2,
		State:       1,
		Src: models.SrcEndpoint{
			EventRecordID: id,
			AssetID:       "a:" + id,
			IP:            "10.0.0.5",
			UserName:      "svc-ops",
			ProcessName:   "TeamViewer.exe",
			AssetType:     1,
		},
		Dst: models.DstEndpoint{
			FQDN:      "router.teamviewer.com",
			IP:        "185.188.32.1",
			Port:      5938,
			AssetType: 5,
		},
	}
}
