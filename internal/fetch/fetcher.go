/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package fetch turns a track reference into a local readable file. All
// failures here are transient from the scheduler's point of view: the
// candidate is discarded and a new one selected.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/catalog"
	"github.com/friendsincode/marinara/internal/config"
)

var (
	// ErrNetwork indicates a transport failure reaching the source.
	ErrNetwork = errors.New("network failure")

	// ErrNotFound indicates the source answered but has no such track.
	ErrNotFound = errors.New("track not found")

	// ErrArchive indicates a downloaded archive could not be processed.
	ErrArchive = errors.New("unreadable archive")
)

// EntryPicker chooses one playable entry from an archive listing.
// catalog.Selector satisfies this.
type EntryPicker interface {
	PickArchiveEntry(entries []string) (string, error)
}

// Fetcher downloads track references into the temp path.
type Fetcher struct {
	cfg    *config.Config
	client *http.Client
	picker EntryPicker
	logger zerolog.Logger
}

// New creates a fetcher.
func New(cfg *config.Config, picker EntryPicker, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		picker: picker,
		logger: logger.With().Str("component", "fetch").Logger(),
	}
}

// Fetch produces a local readable path for the reference. Archives are
// extracted and one playable inner entry selected; nested archives are
// unwrapped until a media file falls out.
func (f *Fetcher) Fetch(ctx context.Context, ref catalog.TrackReference) (string, error) {
	local, err := f.download(ctx, ref.URI, ref.Filename())
	if err != nil {
		return "", err
	}

	for depth := 0; isArchivePath(local); depth++ {
		if depth >= maxArchiveDepth {
			_ = os.Remove(local)
			return "", fmt.Errorf("%w: nesting deeper than %d levels", ErrArchive, maxArchiveDepth)
		}
		local, err = f.resolveArchive(local)
		if err != nil {
			return "", err
		}
	}

	return local, nil
}

// download pulls the URI body into the temp path under name.
func (f *Fetcher) download(ctx context.Context, rawURI, name string) (string, error) {
	uri, err := normalizeURI(rawURI)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrNetwork, rawURI, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, rawURI)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: unexpected status %s for %s", ErrNetwork, resp.Status, rawURI)
	}

	if err := os.MkdirAll(f.cfg.TempPath, 0o755); err != nil {
		return "", fmt.Errorf("create temp path: %w", err)
	}

	dest := filepath.Join(f.cfg.TempPath, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}

	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(dest)
		return "", fmt.Errorf("%w: write %s: %v", ErrNetwork, dest, errors.Join(copyErr, closeErr))
	}

	f.logger.Debug().Str("uri", rawURI).Str("path", dest).Int64("bytes", written).Msg("downloaded")
	return dest, nil
}

// normalizeURI percent-encodes the path so lists with raw spaces still fetch.
func normalizeURI(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute URL")
	}
	return u.String(), nil
}
