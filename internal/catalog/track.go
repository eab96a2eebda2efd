/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog resolves a remote track list into a session catalog and
// picks render candidates from it.
package catalog

import (
	"net/url"
	"path"
	"strings"
)

// TrackReference is one playable entry of the resolved catalog. Immutable
// once resolved; the catalog is rebuilt from the source URL, never patched.
type TrackReference struct {
	URI string
	Ext string // lowercase extension without dot, recognized at resolution time
}

// IsArchive reports whether the reference points at a compressed archive of
// candidate tracks rather than a single media file.
func (t TrackReference) IsArchive() bool {
	return t.Ext == "zip"
}

// Filename returns the decoded base name of the reference URI.
func (t TrackReference) Filename() string {
	raw := t.URI
	if u, err := url.Parse(t.URI); err == nil && u.Path != "" {
		raw = u.Path
	}
	name := path.Base(raw)
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return strings.ToLower(name)
}

// extensionOf extracts the lowercase extension (without dot) from a URI or
// file name. Empty when there is none.
func extensionOf(ref string) string {
	base := path.Base(strings.TrimSpace(ref))
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}
