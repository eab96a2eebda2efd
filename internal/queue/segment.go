/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue tracks committed segments and decides when to render more.
package queue

import (
	"path/filepath"
	"strings"
	"time"
)

// Segment is one committed, independently playable rendered output file.
// It exists in the queue if and only if its backing file exists on storage.
type Segment struct {
	Sequence        uint64    `json:"sequence"`
	Path            string    `json:"path"`
	DurationSeconds float64   `json:"duration_seconds"`
	CommittedAt     time.Time `json:"committed_at"`
	SizeBytes       int64     `json:"size_bytes"`
}

// Age returns how long ago the segment was committed.
func (s Segment) Age(now time.Time) time.Duration {
	return now.Sub(s.CommittedAt)
}

// IsSegmentFile reports whether a file name follows the committed-segment
// naming convention. Covers both current names (media-<uuid>.flv) and the
// numbered names older deployments left behind.
func IsSegmentFile(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	return strings.HasPrefix(base, "media") && strings.HasSuffix(base, ".flv")
}
