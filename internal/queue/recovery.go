/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/config"
	"github.com/friendsincode/marinara/internal/probe"
)

// Scanner reconstructs queue state from the storage location on startup.
// The filesystem is the only durable record; whatever a previous process
// thought it had committed is irrelevant.
type Scanner struct {
	cfg    *config.Config
	prober probe.Prober
	logger zerolog.Logger
}

// NewScanner creates a recovery scanner.
func NewScanner(cfg *config.Config, prober probe.Prober, logger zerolog.Logger) *Scanner {
	return &Scanner{
		cfg:    cfg,
		prober: prober,
		logger: logger.With().Str("component", "recovery").Logger(),
	}
}

// Recover scans the media path for files matching the segment convention,
// probes each, and restores the queue in modification-time order. Files
// failing probe were never validly committed and are deleted. Running the
// scan twice over unchanged storage yields the same queue.
func (s *Scanner) Recover(ctx context.Context, state *State) error {
	segments, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	state.Restore(segments)

	s.logger.Info().
		Int("segments", len(segments)).
		Float64("buffered_s", state.BufferedSeconds()).
		Msg("queue recovered from storage")
	return nil
}

// Scan enumerates and probes committed segments without touching state.
func (s *Scanner) Scan(ctx context.Context) ([]Segment, error) {
	entries, err := os.ReadDir(s.cfg.MediaPath)
	if err != nil {
		// No media path means no work is possible; fatal, restart territory.
		return nil, fmt.Errorf("scan media path: %w", err)
	}

	var segments []Segment
	for _, entry := range entries {
		if entry.IsDir() || !IsSegmentFile(entry.Name()) {
			continue
		}

		path := filepath.Join(s.cfg.MediaPath, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue // raced with a cooperating deleter
		}

		probed, err := s.prober.Probe(ctx, path)
		if err != nil {
			// Corrupt or partial: it cannot be trusted, remove it.
			s.logger.Warn().Str("path", path).Err(err).Msg("deleting unplayable segment file")
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.Error().Str("path", path).Err(rmErr).Msg("failed to delete corrupt segment")
			}
			continue
		}

		segments = append(segments, Segment{
			Path:            path,
			DurationSeconds: probed.DurationSeconds,
			CommittedAt:     info.ModTime(),
			SizeBytes:       info.Size(),
		})
	}

	return segments, nil
}
