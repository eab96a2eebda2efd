/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eviction

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Manifest is the allow-list for the working-directory sweep. Anything in
// the working directory not named here is deleted, operator files included.
type Manifest struct {
	Keep []string `yaml:"keep"`
}

// defaultKeep covers the files the process itself depends on.
var defaultKeep = []string{
	"manifest.yaml",
	"font.ttf",
	".env",
}

// LoadManifest reads the sweep allow-list. A missing file is created with
// the defaults so operators can see and extend the list.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		m := &Manifest{Keep: append([]string(nil), defaultKeep...)}
		if err := m.Save(path); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sweep manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse sweep manifest %s: %w", path, err)
	}

	// The manifest must always protect itself.
	if base := filepath.Base(path); !m.Keeps(base) {
		m.Keep = append(m.Keep, base)
	}
	return &m, nil
}

// Save writes the manifest atomically.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal sweep manifest: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sweep manifest: %w", err)
	}
	return nil
}

// Keeps reports whether name survives a sweep.
func (m *Manifest) Keeps(name string) bool {
	for _, keep := range m.Keep {
		if keep == name {
			return true
		}
	}
	return false
}
