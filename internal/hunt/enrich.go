// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package hunt

import (
	"fmt"
	"time"

	"github.com/fr4nsys/zerohunt/internal/models"
)

// Fixed lookup tables for the enumerated activity fields. Unknown codes
// resolve to an explicit "unknown (<code>)" marker, never silently to a
// default label.

// protocolNames maps IANA protocol numbers.
var protocolNames = map[int]string{
	1:  "ICMP",
	6:  "TCP",
	17: "UDP",
	58: "ICMPv6",
}

// trafficTypeNames maps the activity direction codes.
var trafficTypeNames = map[int]string{
	1: "inbound",
	2: "outbound",
	3: "internal",
}

// stateNames maps the rule verdict codes.
var stateNames = map[int]string{
	1: "allowed",
	2: "blocked",
	3: "audited",
}

// assetTypeNames maps the endpoint asset classification codes.
var assetTypeNames = map[int]string{
	1: "machine",
	2: "user",
	3: "group",
	4: "service",
	5: "external",
}

func lookup(table map[int]string, code int) string {
	if name, ok := table[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d)", code)
}

// ProtocolName resolves an IANA protocol number.
func ProtocolName(code int) string { return lookup(protocolNames, code) }

// TrafficTypeName resolves a traffic direction code.
func TrafficTypeName(code int) string { return lookup(trafficTypeNames, code) }

// StateName resolves a verdict code.
func StateName(code int) string { return lookup(stateNames, code) }

// AssetTypeName resolves an asset classification code.
func AssetTypeName(code int) string { return lookup(assetTypeNames, code) }

// Enrich derives the human-readable view of a record. Pure: the input
// record is never mutated and repeated calls yield identical output.
func Enrich(r models.ActivityRecord, srcAssetName string) models.EnrichedRecord {
	return models.EnrichedRecord{
		Record:        r,
		ISOTimestamp:  time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339),
		SrcAssetName:  srcAssetName,
		ProtocolLabel: ProtocolName(r.Protocol),
		TrafficLabel:  TrafficTypeName(r.TrafficType),
		StateLabel:    StateName(r.State),
		SrcAssetType:  AssetTypeName(r.Src.AssetType),
		DstAssetType:  AssetTypeName(r.Dst.AssetType),
	}
}
