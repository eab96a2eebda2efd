/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eviction

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Usage reports filesystem utilization for a path. Faked in tests; backed
// by statfs in production.
type Usage interface {
	Utilization(path string) (float64, error)
}

// StatfsUsage measures real filesystem utilization.
type StatfsUsage struct{}

// Utilization returns used/total for the filesystem holding path, 0..1.
func (StatfsUsage) Utilization(path string) (float64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	total := fs.Blocks * uint64(fs.Bsize)
	if total == 0 {
		return 0, fmt.Errorf("statfs %s: zero-sized filesystem", path)
	}
	used := (fs.Blocks - fs.Bfree) * uint64(fs.Bsize)
	return float64(used) / float64(total), nil
}
