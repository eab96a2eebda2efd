/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reconciles the queue when a cooperating process deletes segment
// files out from under us. Deletions are the only event of interest; our
// own writes land through Commit.
type Watcher struct {
	mediaPath string
	state     *State
	logger    zerolog.Logger
}

// NewWatcher creates a storage watcher for the media path.
func NewWatcher(mediaPath string, state *State, logger zerolog.Logger) *Watcher {
	return &Watcher{
		mediaPath: mediaPath,
		state:     state,
		logger:    logger.With().Str("component", "watcher").Logger(),
	}
}

// Run watches until the context ends. Watch failures degrade to the
// periodic Reconcile pass rather than killing the process.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(w.mediaPath); err != nil {
		return fmt.Errorf("watch %s: %w", w.mediaPath, err)
	}

	w.logger.Debug().Str("path", w.mediaPath).Msg("watching storage")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !IsSegmentFile(event.Name) {
				continue
			}
			if seg, dropped := w.state.Remove(event.Name); dropped {
				w.logger.Info().
					Uint64("sequence", seg.Sequence).
					Str("path", seg.Path).
					Msg("segment deleted externally, queue reconciled")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.logger.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}
