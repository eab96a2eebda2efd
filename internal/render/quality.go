/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package render

import "sync"

// CRF bounds: 17 is best quality worth paying for, 28 the worst acceptable.
const (
	minCRF = 17
	maxCRF = 28
)

// presets ordered fastest to slowest.
var presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

// Quality tracks the adaptive encoder settings. Renders slower than the
// target speed trade quality for throughput; renders with headroom claw
// quality back. Best effort only, never a commit gate.
type Quality struct {
	mu     sync.Mutex
	target float64
	crf    int
	preset int
}

// NewQuality starts at best CRF and the fastest preset, like a cold encoder
// on unknown hardware.
func NewQuality(targetSpeed float64) *Quality {
	return &Quality{target: targetSpeed, crf: minCRF, preset: 0}
}

// Observe feeds one achieved render speed (multiple of real time) into the
// ladder.
func (q *Quality) Observe(speed float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if speed < q.target {
		q.crf++
	} else if speed > q.target {
		q.crf--
	}
	q.crf = clamp(q.crf, minCRF, maxCRF)

	// Preset moves only on a clear miss in either direction.
	if speed < q.target-0.5 && q.preset > 0 {
		q.preset--
	} else if speed > q.target+0.5 && q.preset < len(presets)-1 {
		q.preset++
	}
}

// CRF returns the current constant rate factor.
func (q *Quality) CRF() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.crf
}

// Preset returns the current x264 preset name.
func (q *Quality) Preset() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return presets[q.preset]
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
