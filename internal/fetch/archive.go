/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package fetch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxArchiveDepth bounds zip-of-zip unwrapping.
const maxArchiveDepth = 4

func isArchivePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// resolveArchive extracts the archive, asks the picker for one playable
// entry, and moves it to the temp path root. The archive and its extraction
// directory are always removed, picked or not.
func (f *Fetcher) resolveArchive(archivePath string) (string, error) {
	defer os.Remove(archivePath)

	extractDir, err := os.MkdirTemp(f.cfg.TempPath, "extract-")
	if err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}
	defer os.RemoveAll(extractDir)

	entries, err := extractAll(archivePath, extractDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrArchive, filepath.Base(archivePath), err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	picked, err := f.picker.PickArchiveEntry(names)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(f.cfg.TempPath, strings.ToLower(filepath.Base(picked)))
	if err := moveFile(entries[picked], dest); err != nil {
		return "", fmt.Errorf("stage %s: %w", picked, err)
	}

	f.logger.Debug().Str("archive", filepath.Base(archivePath)).Str("entry", picked).Msg("archive entry staged")
	return dest, nil
}

// extractAll unpacks every regular file, returning entry name -> extracted path.
func extractAll(archivePath, destDir string) (map[string]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	out := make(map[string]string, len(reader.File))
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		rel := filepath.Clean(filepath.FromSlash(entry.Name))
		if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			// Hostile entry name; skip rather than fail the whole archive.
			continue
		}

		target := filepath.Join(destDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := extractEntry(entry, target); err != nil {
			return nil, err
		}
		out[entry.Name] = target
	}
	return out, nil
}

func extractEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// moveFile renames when possible, copying across filesystems otherwise.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(dst)
		return copyErr
	}
	if closeErr != nil {
		os.Remove(dst)
		return closeErr
	}
	return os.Remove(src)
}
