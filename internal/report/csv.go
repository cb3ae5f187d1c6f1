// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
)

// csvHeader is the column layout, identification columns first so an analyst
// scanning left to right sees what matched before the connection detail.
var csvHeader = []string{
	"iso_timestamp",
	"signature",
	"signature_id",
	"indicators",
	"state",
	"src_asset_name",
	"src_ip",
	"src_user",
	"src_asset_type",
	"src_process",
	"dst_fqdn",
	"dst_ip",
	"protocol",
	"dst_port",
	"dst_asset_type",
	"dst_process",
	"traffic_type",
}

// CSVWriter exports the deduplicated union set to a CSV file.
type CSVWriter struct {
	path string
}

// NewCSVWriter builds a CSV sink targeting path. If the file already exists
// the actual filename gets an incrementing suffix, never an overwrite.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write exports the report's union records and returns the filename used.
func (c *CSVWriter) Write(r models.AggregateReport) (string, error) {
	path, err := uniqueFilename(c.path)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInternal, "create CSV file %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "write CSV header")
	}

	for _, rec := range r.Records {
		if err := w.Write(csvRow(rec)); err != nil {
			return "", errors.Wrap(err, errors.CodeInternal, "write CSV row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "flush CSV")
	}
	return path, nil
}

func csvRow(m models.MatchedRecord) []string {
	e := m.Enriched
	rec := m.Record
	return []string{
		e.ISOTimestamp,
		m.Signature,
		m.SigID,
		indicatorList(m.Indicators),
		e.StateLabel,
		e.SrcAssetName,
		rec.Src.IP,
		rec.Src.UserName,
		e.SrcAssetType,
		rec.Src.ProcessName,
		rec.Dst.FQDN,
		rec.Dst.IP,
		e.ProtocolLabel,
		strconv.Itoa(rec.Dst.Port),
		e.DstAssetType,
		rec.Dst.ProcessName,
		e.TrafficLabel,
	}
}

// uniqueFilename returns path if free, otherwise path_1, path_2, and so on
// with the extension preserved.
func uniqueFilename(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; i < 10000; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", errors.Newf(errors.CodeInternal, "no free filename variant for %s", path)
}
