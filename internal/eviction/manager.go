/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eviction bounds storage usage with three independent policies:
// segment age, disk quota, and a working-directory sweep. Every deletion
// is best-effort and missing-file tolerant, so passes interleave safely
// with the render loop and with cooperating instances.
package eviction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/config"
	"github.com/friendsincode/marinara/internal/queue"
	"github.com/friendsincode/marinara/internal/telemetry"
)

// ErrStorage indicates storage was unreachable during a policy pass.
var ErrStorage = errors.New("storage unreachable during eviction pass")

// Pruner drops downstream references that only pointed at evicted
// segments. Satisfied by the playlist writer.
type Pruner interface {
	Prune() error
}

// Manager runs the eviction policies on an independent cadence.
type Manager struct {
	cfg      *config.Config
	state    *queue.State
	usage    Usage
	manifest *Manifest
	workDir  string
	pruner   Pruner
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

// NewManager creates an eviction manager sweeping workDir. pruner may be
// nil when no playlist chain follows the queue.
func NewManager(cfg *config.Config, state *queue.State, usage Usage, manifest *Manifest, workDir string, pruner Pruner, metrics *telemetry.Metrics, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		state:    state,
		usage:    usage,
		manifest: manifest,
		workDir:  workDir,
		pruner:   pruner,
		metrics:  metrics,
		logger:   logger.With().Str("component", "eviction").Logger(),
	}
}

// Run executes passes until the context ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunPass(ctx); err != nil {
				m.logger.Error().Err(err).Msg("eviction pass failed")
			}
		}
	}
}

// RunPass reconciles the queue against storage, then applies every policy
// once. Policy failures other than unreachable storage are logged, not
// propagated; the next pass will retry.
func (m *Manager) RunPass(ctx context.Context) error {
	_, span := telemetry.StartSpan(ctx, "eviction", "pass")
	defer span.End()

	m.state.Reconcile()

	m.AgePass(time.Now())

	if err := m.DiskPass(); err != nil {
		return err
	}

	m.SweepPass()

	if m.pruner != nil {
		if err := m.pruner.Prune(); err != nil {
			m.logger.Error().Err(err).Msg("playlist prune failed")
		}
	}
	return nil
}

// AgePass deletes every segment past the maximum age, regardless of
// buffer or disk state. Returns the number of segments evicted. A segment
// whose file refuses deletion stays queued for the next pass.
func (m *Manager) AgePass(now time.Time) int {
	var evicted int
	for _, seg := range m.state.Snapshot() {
		if seg.Age(now) <= m.cfg.SegmentMaxAge {
			continue
		}
		if err := m.deleteSegment(seg, "age"); err != nil {
			m.logger.Error().Err(err).Str("path", seg.Path).Msg("segment delete failed")
			continue
		}
		evicted++
	}
	return evicted
}

// DiskPass deletes oldest segments until utilization drops to or below the
// watermark. An exhausted queue that still breaches the watermark is a
// warning; something other than segments is filling the disk.
func (m *Manager) DiskPass() error {
	util, err := m.usage.Utilization(m.cfg.MediaPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if m.metrics != nil {
		m.metrics.DiskUtilization.Set(util)
	}
	if util <= m.cfg.DiskHighWatermark {
		return nil
	}

	m.logger.Info().
		Float64("utilization", util).
		Float64("watermark", m.cfg.DiskHighWatermark).
		Msg("disk quota exceeded, evicting oldest segments")

	for util > m.cfg.DiskHighWatermark {
		snapshot := m.state.Snapshot()
		if len(snapshot) == 0 {
			m.logger.Warn().
				Float64("utilization", util).
				Msg("queue exhausted but disk still over watermark; cannot reclaim further")
			return nil
		}

		// Snapshot is commit-ordered; index zero is the oldest. A delete
		// that fails for any reason other than the file already being
		// gone means storage cannot be reclaimed; retrying the same
		// segment would spin forever.
		if err := m.deleteSegment(snapshot[0], "disk"); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}

		if util, err = m.usage.Utilization(m.cfg.MediaPath); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if m.metrics != nil {
			m.metrics.DiskUtilization.Set(util)
		}
	}
	return nil
}

// SweepPass deletes working-directory files not on the allow-list. Stray
// leftovers from crashed cycles are the target; unrelated operator files
// are accepted collateral, which is why the manifest exists. Files modified
// within the grace period are presumed in-flight scratch of the render loop
// and left alone, since this pass runs concurrently with it.
func (m *Manager) SweepPass() {
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		m.logger.Error().Err(err).Str("dir", m.workDir).Msg("cannot sweep working directory")
		return
	}

	cutoff := time.Now().Add(-m.cfg.SweepGracePeriod)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if m.manifest.Keeps(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // raced with the render loop's own cleanup
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.workDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Error().Err(err).Str("path", path).Msg("sweep delete failed")
			continue
		}
		m.logger.Info().Str("path", path).Msg("swept stray working-directory file")
		if m.metrics != nil {
			m.metrics.Evictions.WithLabelValues("sweep").Inc()
		}
	}
}

// deleteSegment removes the backing file and drops the queue entry. A file
// already gone means a cooperating instance won the race; fine either way.
// Any other deletion failure leaves the entry queued and is reported.
func (m *Manager) deleteSegment(seg queue.Segment, policy string) error {
	if err := os.Remove(seg.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	m.state.Remove(seg.Path)

	m.logger.Info().
		Str("policy", policy).
		Uint64("sequence", seg.Sequence).
		Str("path", seg.Path).
		Float64("age_minutes", time.Since(seg.CommittedAt).Minutes()).
		Msg("segment evicted")

	if m.metrics != nil {
		m.metrics.Evictions.WithLabelValues(policy).Inc()
		m.metrics.EvictedBytes.Add(float64(seg.SizeBytes))
	}
	return nil
}
