// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package models

import "time"

// SrcEndpoint is the source side of a recorded network activity.
type SrcEndpoint struct {
	EventRecordID          string `json:"eventRecordId"`
	AssetID                string `json:"assetId"`
	IP                     string `json:"ip"`
	UserName               string `json:"userName"`
	ProcessName            string `json:"processName"`
	AssetType              int    `json:"assetType"`
	NetworkProtectionState int    `json:"networkProtectionState"`
}

// DstEndpoint is the destination side of a recorded network activity.
type DstEndpoint struct {
	FQDN                   string `json:"fqdn"`
	IP                     string `json:"ip"`
	Port                   int    `json:"port"`
	ProcessName            string `json:"processName"`
	AssetType              int    `json:"assetType"`
	NetworkProtectionState int    `json:"networkProtectionState"`
}

// ActivityRecord is one network activity event as returned by the activities
// API. Integer fields carry raw enum codes; human-readable values live in the
// derived EnrichedRecord, never written back here. Treated as immutable once
// decoded.
type ActivityRecord struct {
	Timestamp   int64       `json:"timestamp"`
	Src         SrcEndpoint `json:"src"`
	Dst         DstEndpoint `json:"dst"`
	Protocol    int         `json:"protocol"`
	TrafficType int         `json:"trafficType"`
	State       int         `json:"state"`
}

// Identity returns the record's dedup key. Empty when the upstream omitted
// the event record ID; such records cannot join the union set.
func (r ActivityRecord) Identity() string {
	return r.Src.EventRecordID
}

// Time returns the record timestamp as a time.Time.
func (r ActivityRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// ActivityPage is one page of the cursor-paginated activities response.
type ActivityPage struct {
	Items        []ActivityRecord `json:"items"`
	ScrollCursor string           `json:"scrollCursor"`
}

// Asset is the subset of the asset API entity the hunt needs.
type Asset struct {
	Entity struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"entity"`
}

// EnrichedRecord is the derived, read-only view of an ActivityRecord with
// enum codes resolved to labels and the source asset name filled in.
type EnrichedRecord struct {
	Record        ActivityRecord `json:"record"`
	ISOTimestamp  string         `json:"isoTimestamp"`
	SrcAssetName  string         `json:"srcAssetName"`
	ProtocolLabel string         `json:"protocol"`
	TrafficLabel  string         `json:"trafficType"`
	StateLabel    string         `json:"state"`
	SrcAssetType  string         `json:"srcAssetType"`
	DstAssetType  string         `json:"dstAssetType"`
}
