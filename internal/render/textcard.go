/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package render

import (
	"fmt"
	"os"
	"strings"
)

// lineWidth is the wrap column for the drawtext scroller.
const lineWidth = 80

// TrackInfo is what the on-screen text card shows about a track.
type TrackInfo struct {
	Title    string
	Artist   string
	Filename string
	Comment  string
}

// writeTextCard renders the scroller text file consumed by drawtext.
func writeTextCard(path string, info TrackInfo) error {
	lines := []string{"Title: " + info.Title}
	if info.Artist != "" {
		lines = append(lines, "Artist: "+info.Artist)
	}
	lines = append(lines, "Filename: "+info.Filename)
	if info.Comment != "" {
		lines = append(lines, "Comments:")
		lines = append(lines, strings.Split(info.Comment, "\n")...)
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(wrapLine(line, lineWidth))
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write text card: %w", err)
	}
	return nil
}

// wrapLine word-wraps a single line at width columns. Words longer than the
// width are kept intact; drawtext clips them rather than us mangling them.
func wrapLine(line string, width int) string {
	if len(line) <= width {
		return line
	}

	words := strings.Fields(line)
	if len(words) == 0 {
		return line
	}

	var out strings.Builder
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			out.WriteString(current)
			out.WriteString("\n")
			current = word
			continue
		}
		current += " " + word
	}
	out.WriteString(current)
	return out.String()
}
