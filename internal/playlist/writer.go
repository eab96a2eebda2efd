/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist maintains the chained ffconcat playlists the player
// follows. Playlists are append-only: a consumer may hold any of them open
// at any moment, so committed lines are never rewritten. Players tolerate
// entries whose files have been evicted and simply skip them.
package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/queue"
)

const (
	ffconcatHeader = "ffconcat version 1.0\n"

	// StartupVideo is the looping placeholder the entry-point playlist
	// plays before the first live playlist.
	StartupVideo = "startup.flv"
)

var playlistName = regexp.MustCompile(`^playlist(\d+)\.txt$`)

// Writer appends committed segments to the current live playlist and
// rotates to a fresh file once it fills up.
type Writer struct {
	dir           string
	rotateEntries int
	logger        zerolog.Logger

	mu      sync.Mutex
	current int
	oldest  int
	entries int
}

// NewWriter attaches to the playlist chain in dir, resuming the highest
// numbered live playlist or seeding playlist1.txt when none exists.
func NewWriter(dir string, rotateEntries int, logger zerolog.Logger) (*Writer, error) {
	w := &Writer{
		dir:           dir,
		rotateEntries: rotateEntries,
		logger:        logger.With().Str("component", "playlist").Logger(),
	}

	lowest, highest, err := scanChain(dir)
	if err != nil {
		return nil, err
	}

	if highest == 0 {
		if err := w.createPlaylist(1); err != nil {
			return nil, err
		}
		w.current, w.oldest = 1, 1
		w.logger.Info().Msg("seeded first playlist")
		return w, nil
	}

	entries, err := countEntries(w.path(highest))
	if err != nil {
		return nil, err
	}
	w.current, w.oldest, w.entries = highest, lowest, entries
	w.logger.Info().
		Int("current", highest).
		Int("oldest", lowest).
		Int("entries", entries).
		Msg("resumed playlist chain")
	return w, nil
}

// Append adds a committed segment to the live playlist, rotating first if
// the current file is full. Segments must arrive in commit order.
func (w *Writer) Append(seg queue.Segment) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entries >= w.rotateEntries {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	line := "file " + filepath.Base(seg.Path) + "\n"
	if err := w.appendLine(w.path(w.current), line); err != nil {
		return err
	}
	w.entries++

	w.logger.Debug().
		Uint64("sequence", seg.Sequence).
		Int("playlist", w.current).
		Int("entries", w.entries).
		Msg("segment appended to playlist")
	return nil
}

// rotate closes the current playlist with a pointer to its successor and
// starts the successor. Callers hold the mutex.
func (w *Writer) rotate() error {
	next := w.current + 1
	if err := w.createPlaylist(next); err != nil {
		return err
	}
	trailer := fmt.Sprintf("file playlist%d.txt\n", next)
	if err := w.appendLine(w.path(w.current), trailer); err != nil {
		return err
	}

	w.logger.Info().Int("from", w.current).Int("to", next).Msg("rotated playlist")
	w.current = next
	w.entries = 0
	return nil
}

// UpdateStartupPointer atomically rewrites the entry-point playlist. A
// player starting from scratch sees the startup clip, then joins the
// oldest live playlist and follows the chain forward.
func (w *Writer) UpdateStartupPointer() error {
	w.mu.Lock()
	oldest := w.oldest
	w.mu.Unlock()
	return w.writeStartupPointer(oldest)
}

func (w *Writer) writeStartupPointer(oldest int) error {
	content := ffconcatHeader +
		"file " + StartupVideo + "\n" +
		fmt.Sprintf("file playlist%d.txt\n", oldest)

	path := filepath.Join(w.dir, "playlist0.txt")
	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write startup playlist: %w", err)
	}
	return nil
}

// Prune deletes fully dead playlists from the head of the chain and
// re-points the entry-point playlist at the oldest live one. A playlist is
// dead once every segment it names has been evicted from storage; a late
// joining consumer should not have to grind through a chain of stale
// entries. Only head playlists are eligible, so the chain stays contiguous,
// and the current playlist is never pruned.
func (w *Writer) Prune() error {
	w.mu.Lock()
	var pruned int
	for w.oldest < w.current {
		live, err := w.hasLiveEntries(w.path(w.oldest))
		if err != nil {
			w.mu.Unlock()
			return err
		}
		if live {
			break
		}
		if err := os.Remove(w.path(w.oldest)); err != nil && !os.IsNotExist(err) {
			w.mu.Unlock()
			return fmt.Errorf("prune playlist%d: %w", w.oldest, err)
		}
		w.oldest++
		pruned++
	}
	oldest := w.oldest
	w.mu.Unlock()

	if pruned == 0 {
		return nil
	}
	w.logger.Info().Int("pruned", pruned).Int("oldest", oldest).Msg("pruned dead playlists")
	return w.writeStartupPointer(oldest)
}

// hasLiveEntries reports whether any segment the playlist names still
// exists on storage. A missing playlist file counts as dead.
func (w *Writer) hasLiveEntries(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read playlist: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		name, ok := strings.CutPrefix(line, "file ")
		if !ok || strings.HasPrefix(name, "playlist") || name == StartupVideo {
			continue
		}
		if _, err := os.Stat(filepath.Join(w.dir, name)); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// CurrentPath returns the live playlist file being appended to.
func (w *Writer) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path(w.current)
}

func (w *Writer) path(n int) string {
	return filepath.Join(w.dir, fmt.Sprintf("playlist%d.txt", n))
}

func (w *Writer) createPlaylist(n int) error {
	if err := renameio.WriteFile(w.path(n), []byte(ffconcatHeader), 0o644); err != nil {
		return fmt.Errorf("create playlist%d: %w", n, err)
	}
	return nil
}

func (w *Writer) appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open playlist for append: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append playlist line: %w", err)
	}
	return f.Sync()
}

// scanChain finds the lowest and highest numbered live playlists in dir.
// playlist0.txt is the startup pointer, not part of the chain.
func scanChain(dir string) (lowest, highest int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("scan playlist dir: %w", err)
	}
	for _, entry := range entries {
		m := playlistName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n == 0 {
			continue
		}
		if lowest == 0 || n < lowest {
			lowest = n
		}
		if n > highest {
			highest = n
		}
	}
	return lowest, highest, nil
}

// countEntries counts segment lines in a playlist, excluding the header
// and any rotation trailer.
func countEntries(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read playlist: %w", err)
	}
	var n int
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "file ") {
			continue
		}
		if strings.HasPrefix(line, "file playlist") {
			continue
		}
		n++
	}
	return n, nil
}
