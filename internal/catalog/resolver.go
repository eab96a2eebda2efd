/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/marinara/internal/config"
)

// ErrCatalogEmpty indicates the source list resolved to zero playable tracks.
// No work is possible; callers treat this as fatal.
var ErrCatalogEmpty = errors.New("catalog contains no playable tracks")

// Catalog is the immutable-for-the-session result of resolving the source
// list. Hash identifies the exact remote body it was built from.
type Catalog struct {
	Tracks []TrackReference
	Hash   string
}

// Changed reports whether the remote list differs from the one this catalog
// was resolved from.
func (c *Catalog) Changed(hash string) bool {
	return c == nil || c.Hash != hash
}

// Resolver turns the playlist source URL into a flat track catalog.
type Resolver struct {
	cfg    *config.Config
	client *http.Client
	logger zerolog.Logger
}

// NewResolver creates a catalog resolver.
func NewResolver(cfg *config.Config, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Resolve fetches the source list and builds the catalog. Lines whose
// extension is not recognized are excluded here, never at render time.
func (r *Resolver) Resolve(ctx context.Context) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.PlaylistSourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog body: %w", err)
	}

	catalog := r.parse(body)
	if len(catalog.Tracks) == 0 {
		return nil, ErrCatalogEmpty
	}

	r.logger.Info().
		Int("tracks", len(catalog.Tracks)).
		Str("hash", catalog.Hash[:12]).
		Msg("catalog resolved")

	return catalog, nil
}

// parse builds a catalog from a raw source body.
func (r *Resolver) parse(body []byte) *Catalog {
	sum := sha256.Sum256(body)
	catalog := &Catalog{Hash: hex.EncodeToString(sum[:])}

	var skipped int
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ext := extensionOf(line)
		if !r.cfg.AllowsExtension(ext) {
			skipped++
			continue
		}
		catalog.Tracks = append(catalog.Tracks, TrackReference{URI: line, Ext: ext})
	}

	if skipped > 0 {
		r.logger.Debug().Int("skipped", skipped).Msg("excluded entries with unsupported extensions")
	}
	return catalog
}

// SourceHash fetches the source list and returns only its content hash.
// Used by the director to detect remote edits without rebuilding the catalog.
func (r *Resolver) SourceHash(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.PlaylistSourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch catalog: unexpected status %s", resp.Status)
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, resp.Body); err != nil {
		return "", fmt.Errorf("read catalog body: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
