/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

import (
	"github.com/friendsincode/marinara/internal/config"
)

// Governor decides whether to render more or idle, from buffered duration
// alone. A plain threshold on purpose: operators tune the gas tank limit
// empirically, and anything cleverer would fight that tuning.
type Governor struct {
	cfg *config.Config
}

// NewGovernor creates a capacity governor.
func NewGovernor(cfg *config.Config) *Governor {
	return &Governor{cfg: cfg}
}

// ShouldRenderMore reports whether the buffer is below target. At or above
// the limit the loop idles.
func (g *Governor) ShouldRenderMore(s *State) bool {
	return ShouldRenderMore(s.BufferedSeconds(), g.cfg.GasTankLimitSeconds)
}

// ShouldRenderMore is the bare decision rule: render while buffered
// duration is strictly below the limit.
func ShouldRenderMore(bufferedSeconds, limitSeconds float64) bool {
	return bufferedSeconds < limitSeconds
}
