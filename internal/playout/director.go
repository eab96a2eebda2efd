/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout runs the render loop: decide whether the buffer needs
// more playback time, pick a track, fetch it, render it and commit the
// segment. One director owns the whole pipeline; only eviction and the
// storage watcher run beside it.
package playout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/catalog"
	"github.com/friendsincode/marinara/internal/config"
	"github.com/friendsincode/marinara/internal/fetch"
	"github.com/friendsincode/marinara/internal/playlist"
	"github.com/friendsincode/marinara/internal/queue"
	"github.com/friendsincode/marinara/internal/render"
	"github.com/friendsincode/marinara/internal/telemetry"
)

// Phase is the director's position in the render cycle.
type Phase string

const (
	PhaseRecovering  Phase = "recovering"
	PhaseIdle        Phase = "idle"
	PhaseSelecting   Phase = "selecting"
	PhaseFetching    Phase = "fetching"
	PhaseTranscoding Phase = "transcoding"
	PhaseCommitting  Phase = "committing"
)

// ErrInvalidTransition indicates an invalid phase transition was attempted.
var ErrInvalidTransition = errors.New("invalid phase transition")

// candidateCooldown keeps a failed track out of selection long enough for
// transient upstream trouble to clear.
const candidateCooldown = 5 * time.Minute

// Director drives the render cycle as a single-owner state machine.
type Director struct {
	cfg      *config.Config
	resolver *catalog.Resolver
	selector *catalog.Selector
	fetcher  *fetch.Fetcher
	adapter  *render.Adapter
	state    *queue.State
	governor *queue.Governor
	scanner  *queue.Scanner
	writer   *playlist.Writer
	metrics  *telemetry.Metrics
	logger   zerolog.Logger

	mu       sync.Mutex
	phase    Phase
	catalog  *catalog.Catalog
	cooldown map[string]time.Time
}

// New wires a director over an already bootstrapped filesystem.
func New(
	cfg *config.Config,
	resolver *catalog.Resolver,
	selector *catalog.Selector,
	fetcher *fetch.Fetcher,
	adapter *render.Adapter,
	state *queue.State,
	governor *queue.Governor,
	scanner *queue.Scanner,
	writer *playlist.Writer,
	metrics *telemetry.Metrics,
	logger zerolog.Logger,
) *Director {
	return &Director{
		cfg:      cfg,
		resolver: resolver,
		selector: selector,
		fetcher:  fetcher,
		adapter:  adapter,
		state:    state,
		governor: governor,
		scanner:  scanner,
		writer:   writer,
		metrics:  metrics,
		logger:   logger.With().Str("component", "director").Logger(),
		phase:    PhaseRecovering,
		cooldown: make(map[string]time.Time),
	}
}

// Phase returns the director's current phase.
func (d *Director) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Run executes the render loop until the context ends or a fatal error
// occurs. Storage loss and an empty catalog are fatal; per-track failures
// are logged and the loop moves to another candidate.
func (d *Director) Run(ctx context.Context) error {
	if err := d.recover(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !d.governor.ShouldRenderMore(d.state) {
			if err := d.idle(ctx); err != nil {
				return err
			}
			continue
		}

		if err := d.cycle(ctx); err != nil {
			if isFatal(err) {
				return err
			}
			d.logger.Error().Err(err).Msg("render cycle failed, moving to next candidate")
			if err := d.transitionTo(PhaseIdle); err != nil {
				return err
			}
			// Back off before re-picking. Without this a dead source
			// turns the loop into a tight retry hammer, and a small
			// catalog re-picks the identical candidate immediately.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d.cfg.IdlePollInterval):
			}
		}
	}
}

// recover rebuilds queue state from storage before anything renders.
func (d *Director) recover(ctx context.Context) error {
	spanCtx, span := telemetry.StartSpan(ctx, "playout", "recover")
	defer span.End()

	if err := d.scanner.Recover(spanCtx, d.state); err != nil {
		return fmt.Errorf("recovery scan: %w", err)
	}
	d.updateGauges()

	if err := d.writer.UpdateStartupPointer(); err != nil {
		return err
	}
	return d.transitionTo(PhaseIdle)
}

// idle waits one poll interval with a full buffer.
func (d *Director) idle(ctx context.Context) error {
	if err := d.transitionTo(PhaseIdle); err != nil {
		return err
	}
	d.updateGauges()

	d.logger.Debug().
		Float64("buffered_seconds", d.state.BufferedSeconds()).
		Float64("limit_seconds", d.cfg.GasTankLimitSeconds).
		Msg("gas tank full, idling")

	select {
	case <-ctx.Done():
	case <-time.After(d.cfg.IdlePollInterval):
	}
	return nil
}

// cycle runs one select-fetch-render-commit pass.
func (d *Director) cycle(ctx context.Context) error {
	spanCtx, span := telemetry.StartSpan(ctx, "playout", "cycle")
	defer span.End()

	if err := d.refreshCatalog(spanCtx); err != nil {
		return err
	}

	if err := d.transitionTo(PhaseSelecting); err != nil {
		return err
	}
	ref, err := d.selectTrack()
	if err != nil {
		return err
	}
	log := d.logger.With().Str("track", ref.Filename()).Logger()

	if err := d.transitionTo(PhaseFetching); err != nil {
		return err
	}
	localPath, err := d.fetcher.Fetch(spanCtx, ref)
	if err != nil {
		d.failCandidate(ref, "fetch")
		return fmt.Errorf("fetch %s: %w", ref.Filename(), err)
	}

	if err := d.transitionTo(PhaseTranscoding); err != nil {
		return err
	}
	result, err := d.adapter.Render(spanCtx, localPath)
	if err != nil {
		d.failCandidate(ref, "render")
		return fmt.Errorf("render %s: %w", ref.Filename(), err)
	}

	if err := d.transitionTo(PhaseCommitting); err != nil {
		return err
	}
	if err := d.commit(result); err != nil {
		return err
	}

	log.Info().
		Float64("duration_seconds", result.DurationSeconds).
		Float64("speed", result.AchievedSpeed()).
		Float64("buffered_seconds", d.state.BufferedSeconds()).
		Msg("segment committed")

	return d.transitionTo(PhaseIdle)
}

// refreshCatalog resolves the track list on first use and re-resolves when
// the remote content hash changes. A transient hash failure keeps the
// cached catalog; an empty catalog is fatal.
func (d *Director) refreshCatalog(ctx context.Context) error {
	d.mu.Lock()
	current := d.catalog
	d.mu.Unlock()

	if current != nil {
		hash, err := d.resolver.SourceHash(ctx)
		if err != nil {
			d.logger.Warn().Err(err).Msg("catalog source unreachable, using cached catalog")
			return nil
		}
		if !current.Changed(hash) {
			return nil
		}
		d.logger.Info().Msg("catalog source changed, re-resolving")
		if d.metrics != nil {
			d.metrics.CatalogRefreshes.Inc()
		}
	}

	resolved, err := d.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrCatalogEmpty) {
			return err
		}
		if current != nil {
			d.logger.Warn().Err(err).Msg("catalog refresh failed, using cached catalog")
			return nil
		}
		return fmt.Errorf("resolve catalog: %w", err)
	}

	d.mu.Lock()
	d.catalog = resolved
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.CatalogTracks.Set(float64(len(resolved.Tracks)))
	}
	return nil
}

// selectTrack picks a catalog track, excluding candidates that failed
// recently. When everything is cooling down the full catalog is used
// anyway; a small catalog must not starve the loop.
func (d *Director) selectTrack() (catalog.TrackReference, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	eligible := make([]catalog.TrackReference, 0, len(d.catalog.Tracks))
	for _, ref := range d.catalog.Tracks {
		until, cooling := d.cooldown[ref.URI]
		if cooling && now.Before(until) {
			continue
		}
		delete(d.cooldown, ref.URI)
		eligible = append(eligible, ref)
	}

	if len(eligible) == 0 {
		d.logger.Debug().Msg("every candidate cooling down, selecting from full catalog")
		return d.selector.PickTrack(d.catalog)
	}
	return d.selector.PickTrack(&catalog.Catalog{Tracks: eligible, Hash: d.catalog.Hash})
}

// failCandidate records a per-track failure for cooldown and metrics.
func (d *Director) failCandidate(ref catalog.TrackReference, stage string) {
	d.mu.Lock()
	d.cooldown[ref.URI] = time.Now().Add(candidateCooldown)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.RenderFailures.WithLabelValues(stage).Inc()
	}
}

// commit atomically publishes the rendered segment: move into storage,
// register in the queue, append to the playlist chain.
func (d *Director) commit(result render.Result) error {
	dest := filepath.Join(d.cfg.MediaPath, filepath.Base(result.OutputPath))
	if err := moveFile(result.OutputPath, dest); err != nil {
		return fmt.Errorf("publish segment: %w", err)
	}

	seg := d.state.Commit(dest, result.DurationSeconds, result.SizeBytes)
	if err := d.writer.Append(seg); err != nil {
		return err
	}
	if err := d.writer.UpdateStartupPointer(); err != nil {
		return err
	}

	if d.metrics != nil {
		d.metrics.SegmentsCommitted.Inc()
		d.metrics.RenderSpeed.Observe(result.AchievedSpeed())
	}
	d.updateGauges()
	return nil
}

func (d *Director) updateGauges() {
	if d.metrics == nil {
		return
	}
	d.metrics.GasTankSeconds.Set(d.state.BufferedSeconds())
	d.metrics.QueueSegments.Set(float64(d.state.Len()))
	d.metrics.StorageBytes.Set(float64(d.state.StorageBytes()))
}

// transitionTo validates and applies a phase change.
func (d *Director) transitionTo(to Phase) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.phase == to {
		return nil
	}
	if !isValidTransition(d.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.phase, to)
	}

	d.logger.Debug().Str("from", string(d.phase)).Str("to", string(to)).Msg("phase transition")
	d.phase = to
	return nil
}

func isValidTransition(from, to Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseRecovering: {
			PhaseIdle,
		},
		PhaseIdle: {
			PhaseSelecting,
		},
		PhaseSelecting: {
			PhaseFetching,
			PhaseIdle,
		},
		PhaseFetching: {
			PhaseTranscoding,
			PhaseIdle,
		},
		PhaseTranscoding: {
			PhaseCommitting,
			PhaseIdle,
		},
		PhaseCommitting: {
			PhaseIdle,
		},
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}
	return false
}

// isFatal reports whether an error ends the loop. Everything else is a
// per-track failure worth retrying with another candidate.
func isFatal(err error) bool {
	return errors.Is(err, catalog.ErrCatalogEmpty) || errors.Is(err, ErrInvalidTransition)
}

// moveFile renames src to dst, copying across filesystems when the scratch
// space and storage live on different mounts.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
