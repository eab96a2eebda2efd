/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/queue"
)

func seg(seq uint64, name string) queue.Segment {
	return queue.Segment{
		Sequence:    seq,
		Path:        filepath.Join("/media", name),
		CommittedAt: time.Now(),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestWriterSeedsFirstPlaylist(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 50, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, w.CurrentPath())
	if len(lines) != 1 || lines[0] != "ffconcat version 1.0" {
		t.Fatalf("seeded playlist = %q, want header only", lines)
	}
}

func TestWriterAppendsInCommitOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 50, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	names := []string{"media-a.flv", "media-b.flv", "media-c.flv"}
	for i, name := range names {
		if err := w.Append(seg(uint64(i+1), name)); err != nil {
			t.Fatal(err)
		}
	}

	lines := readLines(t, w.CurrentPath())
	want := []string{"ffconcat version 1.0", "file media-a.flv", "file media-b.flv", "file media-c.flv"}
	if len(lines) != len(want) {
		t.Fatalf("playlist has %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWriterRotatesAndChains(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 2, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	for i, name := range []string{"media-a.flv", "media-b.flv", "media-c.flv"} {
		if err := w.Append(seg(uint64(i+1), name)); err != nil {
			t.Fatal(err)
		}
	}

	first := readLines(t, filepath.Join(dir, "playlist1.txt"))
	if last := first[len(first)-1]; last != "file playlist2.txt" {
		t.Errorf("full playlist trailer = %q, want chain pointer", last)
	}

	second := readLines(t, filepath.Join(dir, "playlist2.txt"))
	want := []string{"ffconcat version 1.0", "file media-c.flv"}
	if len(second) != 2 || second[1] != want[1] {
		t.Errorf("successor playlist = %q, want %q", second, want)
	}
	if w.CurrentPath() != filepath.Join(dir, "playlist2.txt") {
		t.Errorf("current playlist = %s after rotation", w.CurrentPath())
	}
}

func TestWriterNeverRewritesAfterEviction(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 50, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	for i, name := range []string{"media-a.flv", "media-b.flv", "media-c.flv"} {
		if err := w.Append(seg(uint64(i+1), name)); err != nil {
			t.Fatal(err)
		}
	}
	before := readLines(t, w.CurrentPath())

	// A consumer may hold the playlist open; evicting media-b.flv from
	// storage must not touch the lines already written.
	if err := w.Append(seg(4, "media-d.flv")); err != nil {
		t.Fatal(err)
	}
	after := readLines(t, w.CurrentPath())

	if len(after) != len(before)+1 {
		t.Fatalf("append rewrote file: before %d lines, after %d", len(before), len(after))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("committed line %d changed from %q to %q", i, before[i], after[i])
		}
	}
}

func TestWriterResumesHighestPlaylist(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("playlist0.txt", "ffconcat version 1.0\nfile startup.flv\nfile playlist2.txt\n")
	write("playlist2.txt", "ffconcat version 1.0\nfile media-a.flv\nfile playlist3.txt\n")
	write("playlist3.txt", "ffconcat version 1.0\nfile media-b.flv\n")

	w, err := NewWriter(dir, 2, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if w.CurrentPath() != filepath.Join(dir, "playlist3.txt") {
		t.Fatalf("resumed at %s, want playlist3.txt", w.CurrentPath())
	}

	// One entry already present, budget is two, so the next append lands
	// in playlist3 and the one after rotates.
	if err := w.Append(seg(1, "media-c.flv")); err != nil {
		t.Fatal(err)
	}
	if w.CurrentPath() != filepath.Join(dir, "playlist3.txt") {
		t.Error("rotated one append too early")
	}
	if err := w.Append(seg(2, "media-d.flv")); err != nil {
		t.Fatal(err)
	}
	if w.CurrentPath() != filepath.Join(dir, "playlist4.txt") {
		t.Errorf("current = %s, want playlist4.txt", w.CurrentPath())
	}
}

func TestPruneDropsDeadHeadPlaylists(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// playlist1's segments are all evicted; playlist2 still has one live
	// segment; playlist3 is current.
	write("playlist1.txt", "ffconcat version 1.0\nfile media-a.flv\nfile media-b.flv\nfile playlist2.txt\n")
	write("playlist2.txt", "ffconcat version 1.0\nfile media-c.flv\nfile playlist3.txt\n")
	write("playlist3.txt", "ffconcat version 1.0\n")
	write("media-c.flv", "flv")

	w, err := NewWriter(dir, 50, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Prune(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "playlist1.txt")); !os.IsNotExist(err) {
		t.Error("dead head playlist not pruned")
	}
	if _, err := os.Stat(filepath.Join(dir, "playlist2.txt")); err != nil {
		t.Errorf("live playlist pruned: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "playlist0.txt"))
	if last := lines[len(lines)-1]; last != "file playlist2.txt" {
		t.Errorf("startup pointer = %q, want oldest live playlist", last)
	}
}

func TestPruneStopsAtFirstLivePlaylist(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// playlist2 is dead but sits behind live playlist1; pruning it would
	// break the chain, so nothing may be removed.
	write("playlist1.txt", "ffconcat version 1.0\nfile media-a.flv\nfile playlist2.txt\n")
	write("playlist2.txt", "ffconcat version 1.0\nfile media-b.flv\nfile playlist3.txt\n")
	write("playlist3.txt", "ffconcat version 1.0\nfile media-c.flv\n")
	write("media-a.flv", "flv")
	write("media-c.flv", "flv")

	w, err := NewWriter(dir, 50, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Prune(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"playlist1.txt", "playlist2.txt", "playlist3.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s pruned behind a live head: %v", name, err)
		}
	}
}

func TestPruneNeverRemovesCurrentPlaylist(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 2, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	// Fill playlist1 so the writer rotates to playlist2, then evict
	// everything. Only playlist1 may go; playlist2 is still being written.
	for i, name := range []string{"media-a.flv", "media-b.flv", "media-c.flv"} {
		if err := w.Append(seg(uint64(i+1), name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Prune(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "playlist1.txt")); !os.IsNotExist(err) {
		t.Error("fully evicted head playlist kept")
	}
	if w.CurrentPath() != filepath.Join(dir, "playlist2.txt") {
		t.Fatalf("current = %s after prune", w.CurrentPath())
	}
	if _, err := os.Stat(w.CurrentPath()); err != nil {
		t.Errorf("current playlist pruned: %v", err)
	}

	// Appends continue into the surviving current playlist.
	if err := w.Append(seg(4, "media-d.flv")); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStartupPointer(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "playlist3.txt"), []byte("ffconcat version 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "playlist5.txt"), []byte("ffconcat version 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWriter(dir, 50, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.UpdateStartupPointer(); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, filepath.Join(dir, "playlist0.txt"))
	want := []string{"ffconcat version 1.0", "file startup.flv", "file playlist3.txt"}
	if len(lines) != len(want) {
		t.Fatalf("startup playlist = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
