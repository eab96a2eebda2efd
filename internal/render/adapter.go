/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package render drives the external transcoder: one local media file in,
// one committed-ready FLV segment out.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/config"
	"github.com/friendsincode/marinara/internal/probe"
)

// ErrRender indicates the transcoder failed or its input was unusable.
// Recoverable; the scheduler discards the candidate and selects again.
var ErrRender = errors.New("render failed")

// Result describes one successfully rendered segment, pre-commit.
type Result struct {
	OutputPath       string
	DurationSeconds  float64
	WallClockSeconds float64
	SizeBytes        int64
	Title            string
	Artist           string
}

// AchievedSpeed returns the render speed as a multiple of real time.
// Observability only; commits never gate on it.
func (r Result) AchievedSpeed() float64 {
	if r.WallClockSeconds <= 0 {
		return 0
	}
	return r.DurationSeconds / r.WallClockSeconds
}

// Adapter invokes ffmpeg in two passes: silence trim to AAC, then the
// visualization render to FLV. Rendering parameters (1080p30 showcqt,
// CBR 4.5M x264) are fixed, not yet parameterized.
type Adapter struct {
	cfg      *config.Config
	prober   probe.Prober
	quality  *Quality
	fontPath string
	logger   zerolog.Logger
}

// New creates a render adapter.
func New(cfg *config.Config, prober probe.Prober, quality *Quality, fontPath string, logger zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:      cfg,
		prober:   prober,
		quality:  quality,
		fontPath: fontPath,
		logger:   logger.With().Str("component", "render").Logger(),
	}
}

// Render transcodes inputPath into a segment file in the temp path. The
// input file is consumed on success. Output names are globally unique so
// independent instances can share a storage location without collisions.
func (a *Adapter) Render(ctx context.Context, inputPath string) (Result, error) {
	started := time.Now()

	meta, err := a.prober.Probe(ctx, inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: input %s: %v", ErrRender, filepath.Base(inputPath), err)
	}
	if meta.Title == "" {
		return Result{}, fmt.Errorf("%w: %s carries no title tag", ErrRender, filepath.Base(inputPath))
	}
	if max := a.cfg.MaxTrackLengthSeconds(); meta.DurationSeconds > max {
		return Result{}, fmt.Errorf("%w: %s runs %.0fs, longer than the %.0fs cap",
			ErrRender, filepath.Base(inputPath), meta.DurationSeconds, max)
	}

	id := uuid.New().String()
	audioPath := filepath.Join(a.cfg.TempPath, id+".aac")
	textPath := filepath.Join(a.cfg.TempPath, id+".txt")
	outputPath := filepath.Join(a.cfg.TempPath, "media-"+id+".flv")
	defer os.Remove(audioPath)
	defer os.Remove(textPath)

	if err := a.trimAudio(ctx, inputPath, audioPath); err != nil {
		return Result{}, err
	}

	// Silence trimming changes the runtime; the trimmed audio is the truth.
	trimmed, err := a.prober.Probe(ctx, audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: trimmed audio: %v", ErrRender, err)
	}

	info := TrackInfo{
		Title:    meta.Title,
		Artist:   meta.Artist,
		Filename: filepath.Base(inputPath),
		Comment:  meta.Comment,
	}
	if err := writeTextCard(textPath, info); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	if err := a.renderVideo(ctx, audioPath, textPath, outputPath, trimmed.DurationSeconds); err != nil {
		os.Remove(outputPath)
		return Result{}, err
	}

	verified, err := a.prober.Probe(ctx, outputPath)
	if err != nil {
		os.Remove(outputPath)
		return Result{}, err
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: stat output: %v", ErrRender, err)
	}

	os.Remove(inputPath)

	result := Result{
		OutputPath:       outputPath,
		DurationSeconds:  verified.DurationSeconds,
		WallClockSeconds: time.Since(started).Seconds(),
		SizeBytes:        stat.Size(),
		Title:            meta.Title,
		Artist:           meta.Artist,
	}

	speed := result.AchievedSpeed()
	a.quality.Observe(speed)
	a.logger.Info().
		Str("title", meta.Title).
		Float64("duration_s", result.DurationSeconds).
		Float64("wall_clock_s", result.WallClockSeconds).
		Float64("speed", speed).
		Float64("target_speed", a.cfg.TargetSpeedMultiplier).
		Int("crf", a.quality.CRF()).
		Str("preset", a.quality.Preset()).
		Msg("segment rendered")

	return result, nil
}

// trimAudio strips leading/trailing silence and normalizes to 44.1kHz AAC.
func (a *Adapter) trimAudio(ctx context.Context, inputPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, a.cfg.FFmpegBin,
		"-i", inputPath,
		"-y",
		"-loglevel", "warning",
		"-nostats",
		"-hide_banner",
		"-af", "silenceremove=start_periods=1:stop_periods=1:detection=peak",
		"-ar", "44100",
		"-c:a", "aac",
		"-b:a", "128k",
		audioPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: audio pass: %v: %s", ErrRender, err, firstLine(output))
	}
	return nil
}

// renderVideo runs the visualization pass: showcqt spectrum, scrolling text
// card, five second fades on both ends.
func (a *Adapter) renderVideo(ctx context.Context, audioPath, textPath, outputPath string, duration float64) error {
	fadeOutStart := duration - 5.0
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}

	filter := "[0:a]showcqt=sono_h=0:axis=0:s=1920x1080:fps=30:bar_h=1080:cscheme=1|0|1|0|1|0:csp=bt470bg[left]; " +
		"[left] hflip [left]; " +
		"[left] drawtext=fontfile=" + a.fontPath +
		`:fontsize=24:fontcolor=white:x=20:y=h-mod(max(t-0.0\,0)*(h+th)/50.0\,(h+th)):textfile=` + textPath + " [out]; " +
		"[out] fade=t=in:st=0:d=5,fade=t=out:st=" + strconv.FormatFloat(fadeOutStart, 'f', -1, 64) + ":d=5 [out]"

	cmd := exec.CommandContext(ctx, a.cfg.FFmpegBin,
		"-i", audioPath,
		"-y",
		"-loglevel", "warning",
		"-nostats",
		"-hide_banner",
		"-filter_complex", filter,
		"-map", "[out]",
		"-map", "0:a",
		"-c:v", "libx264",
		"-x264-params", "nal-hrd=cbr:force-cfr=1",
		"-b:v", "4.5M",
		"-preset", a.quality.Preset(),
		"-tune", "fastdecode",
		"-crf", strconv.Itoa(a.quality.CRF()),
		"-maxrate", "4.5M",
		"-minrate", "4.5M",
		"-bufsize", "9M",
		"-ar", "44100",
		"-c:a", "copy",
		"-g", "4",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: video pass: %v: %s", ErrRender, err, firstLine(output))
	}
	return nil
}

func firstLine(output []byte) string {
	for i, b := range output {
		if b == '\n' {
			return string(output[:i])
		}
	}
	return string(output)
}
