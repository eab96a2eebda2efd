/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package probe wraps ffprobe for duration and tag extraction.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrProbe indicates a file failed validation: unreadable, or no usable
// duration. Files failing probe are never committed.
var ErrProbe = errors.New("file failed probe validation")

// Result is the probed metadata of a local media file.
type Result struct {
	DurationSeconds float64
	Title           string
	Artist          string
	Comment         string
}

// Prober obtains playable metadata from a local file.
type Prober interface {
	Probe(ctx context.Context, path string) (Result, error)
}

// FFProbe shells out to the ffprobe binary.
type FFProbe struct {
	bin    string
	logger zerolog.Logger
}

// NewFFProbe creates a prober using the given ffprobe binary.
func NewFFProbe(bin string, logger zerolog.Logger) *FFProbe {
	return &FFProbe{bin: bin, logger: logger.With().Str("component", "probe").Logger()}
}

// Probe extracts format metadata. A missing or non-positive duration is a
// validation failure, not a partial success.
func (p *FFProbe) Probe(ctx context.Context, path string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("%w: ffprobe %s: %v", ErrProbe, path, err)
	}

	var parsed struct {
		Format struct {
			Duration string            `json:"duration"`
			Tags     map[string]string `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: parse ffprobe output for %s: %v", ErrProbe, path, err)
	}

	res := Result{}
	if parsed.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			res.DurationSeconds = secs
		}
	}
	if res.DurationSeconds <= 0 {
		return Result{}, fmt.Errorf("%w: %s has no usable duration", ErrProbe, path)
	}

	for k, v := range parsed.Format.Tags {
		switch strings.ToLower(k) {
		case "title":
			res.Title = v
		case "artist":
			res.Artist = v
		case "comment":
			res.Comment = v
		}
	}

	p.logger.Debug().Str("path", path).Float64("duration_s", res.DurationSeconds).Msg("probed")
	return res, nil
}
