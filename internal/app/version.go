// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package app

import "fmt"

// Build metadata, injected at link time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// VersionString renders the full build identification line.
func VersionString() string {
	return fmt.Sprintf("zerohunt %s (commit %s, built %s)", Version, Commit, BuildDate)
}
