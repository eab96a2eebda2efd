/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"errors"
	"math/rand"
	"time"

	"github.com/friendsincode/marinara/internal/config"
)

// ErrNoPlayableEntry indicates an archive held zero entries matching the
// allowed extensions. Recoverable; the caller retries with a new candidate.
var ErrNoPlayableEntry = errors.New("archive contains no playable entries")

// Selector picks tracks uniformly at random. Selection is deliberately not
// round-robin; operators accept repeats in exchange for zero bookkeeping.
type Selector struct {
	cfg *config.Config
	rng *rand.Rand
}

// NewSelector creates a selector with a time-seeded source.
func NewSelector(cfg *config.Config) *Selector {
	return &Selector{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PickTrack chooses one reference uniformly at random from the catalog.
func (s *Selector) PickTrack(c *Catalog) (TrackReference, error) {
	if c == nil || len(c.Tracks) == 0 {
		return TrackReference{}, ErrCatalogEmpty
	}
	return c.Tracks[s.rng.Intn(len(c.Tracks))], nil
}

// PickArchiveEntry chooses uniformly among the playable entries of an
// archive listing. A sole playable entry is returned directly.
func (s *Selector) PickArchiveEntry(entries []string) (string, error) {
	playable := make([]string, 0, len(entries))
	for _, e := range entries {
		if s.cfg.AllowsExtension(extensionOf(e)) {
			playable = append(playable, e)
		}
	}
	if len(playable) == 0 {
		return "", ErrNoPlayableEntry
	}
	if len(playable) == 1 {
		return playable[0], nil
	}
	return playable[s.rng.Intn(len(playable))], nil
}
