/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package bootstrap prepares the filesystem before the render loop starts:
// working directories, the drawtext font and the startup video. Everything
// is idempotent so restarts skip whatever is already in place.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/config"
	"github.com/friendsincode/marinara/internal/playlist"
)

// FontFile is the drawtext font name inside the working directory.
const FontFile = "font.ttf"

// Bootstrapper downloads and stages the static assets rendering depends on.
type Bootstrapper struct {
	cfg    *config.Config
	client *http.Client
	logger zerolog.Logger
}

// New creates a bootstrapper using the fetch timeout for asset downloads.
func New(cfg *config.Config, logger zerolog.Logger) *Bootstrapper {
	return &Bootstrapper{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		logger: logger.With().Str("component", "bootstrap").Logger(),
	}
}

// Run stages directories and assets. Any failure is fatal for startup;
// rendering without the font or startup video produces broken output.
func (b *Bootstrapper) Run(ctx context.Context) error {
	for _, dir := range []string{b.cfg.TempPath, b.cfg.MediaPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if err := b.ensureFile(ctx, filepath.Join(b.cfg.TempPath, FontFile), b.cfg.FontURL); err != nil {
		return fmt.Errorf("stage font: %w", err)
	}
	if err := b.ensureFile(ctx, filepath.Join(b.cfg.MediaPath, playlist.StartupVideo), b.cfg.StartupVideoURL); err != nil {
		return fmt.Errorf("stage startup video: %w", err)
	}
	return nil
}

// FontPath returns where the staged font lives.
func (b *Bootstrapper) FontPath() string {
	return filepath.Join(b.cfg.TempPath, FontFile)
}

// ensureFile downloads url to path unless path already exists. The write
// is atomic so a crash mid-download never leaves a truncated asset.
func (b *Bootstrapper) ensureFile(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		b.logger.Debug().Str("path", path).Msg("asset already staged")
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	b.logger.Info().Str("path", path).Str("url", url).Msg("downloading asset")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, resp.Body); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
