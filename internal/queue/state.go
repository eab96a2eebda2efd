/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package queue

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the ordered record of live segments plus derived aggregates.
// Single writer (the render loop); eviction and the reconciler read and
// remove under the same lock, so every reader observes a consistent snapshot.
type State struct {
	mu       sync.Mutex
	segments []Segment // ascending CommittedAt
	nextSeq  uint64
	logger   zerolog.Logger
}

// NewState creates an empty queue state.
func NewState(logger zerolog.Logger) *State {
	return &State{nextSeq: 1, logger: logger.With().Str("component", "queue").Logger()}
}

// Commit records a rendered segment as live and returns it with its
// sequence number assigned. Sequence numbers are monotonic per process
// lifetime and never reused.
func (s *State) Commit(path string, durationSeconds float64, sizeBytes int64) Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg := Segment{
		Sequence:        s.nextSeq,
		Path:            path,
		DurationSeconds: durationSeconds,
		CommittedAt:     time.Now(),
		SizeBytes:       sizeBytes,
	}
	s.nextSeq++
	s.segments = append(s.segments, seg)

	s.logger.Debug().
		Uint64("sequence", seg.Sequence).
		Str("path", path).
		Float64("duration_s", durationSeconds).
		Msg("segment committed")

	return seg
}

// Restore replaces the queue with recovered segments, ordered by commit
// time, and resumes sequence numbering after them.
func (s *State) Restore(segments []Segment) {
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].CommittedAt.Before(segments[j].CommittedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.segments = make([]Segment, len(segments))
	copy(s.segments, segments)
	s.nextSeq = 1
	for i := range s.segments {
		s.segments[i].Sequence = s.nextSeq
		s.nextSeq++
	}
}

// Remove drops the segment backing path from the queue. Reports whether
// anything was dropped; a miss is not an error, another pass or another
// instance may have won the race.
func (s *State) Remove(path string) (Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, seg := range s.segments {
		if seg.Path == path {
			s.segments = append(s.segments[:i], s.segments[i+1:]...)
			return seg, true
		}
	}
	return Segment{}, false
}

// Reconcile drops every segment whose backing file no longer exists and
// returns the dropped entries. Cooperating instances delete files without
// telling us; the queue must follow the filesystem, not the other way.
func (s *State) Reconcile() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []Segment
	kept := s.segments[:0]
	for _, seg := range s.segments {
		if _, err := os.Stat(seg.Path); os.IsNotExist(err) {
			dropped = append(dropped, seg)
			continue
		}
		kept = append(kept, seg)
	}
	s.segments = kept

	for _, seg := range dropped {
		s.logger.Info().Str("path", seg.Path).Msg("segment removed externally, reconciled")
	}
	return dropped
}

// Snapshot returns the live segments in commit order.
func (s *State) Snapshot() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// BufferedSeconds is the total playable duration currently committed.
func (s *State) BufferedSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, seg := range s.segments {
		total += seg.DurationSeconds
	}
	return total
}

// StorageBytes is the total size of live segment files.
func (s *State) StorageBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, seg := range s.segments {
		total += seg.SizeBytes
	}
	return total
}

// Len returns the number of live segments.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}
