// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-gameid.
//
// go-gameid is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-gameid is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-gameid.  If not, see <https://www.gnu.org/licenses/>.

// Package advisory holds a small catalog mapping firmware filesystem version
// strings (the master block's 14-byte version field) to human-readable notes
// about known layout quirks. It is loaded the same way the source project's
// game metadata database is: gob-encoded and gzip-compressed.
package advisory

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// Note is one advisory entry for a specific firmware version string.
type Note struct {
	Version string
	Summary string
	// KnownGood reports whether this parser is validated against this
	// version. A false value does not mean parsing will fail -- only that
	// the layout has not been confirmed, matching master.Block.VersionSupported.
	KnownGood bool
}

// Catalog maps a version string to its advisory note.
type Catalog struct {
	Notes map[string]Note
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{Notes: make(map[string]Note)}
}

// Load reads a gzip-compressed gob-encoded catalog from path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("advisory: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return LoadFromReader(f)
}

// LoadFromReader reads a gzip-compressed gob-encoded catalog from r.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("advisory: gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	cat := NewCatalog()
	if err := gob.NewDecoder(gz).Decode(cat); err != nil {
		return nil, fmt.Errorf("advisory: decode catalog: %w", err)
	}
	return cat, nil
}

// Save writes the catalog to path as gzip-compressed gob.
func (c *Catalog) Save(path string) error {
	f, err := os.Create(path) //nolint:gosec // operator-supplied output path
	if err != nil {
		return fmt.Errorf("advisory: create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	gz := gzip.NewWriter(f)
	defer func() { _ = gz.Close() }()

	if err := gob.NewEncoder(gz).Encode(c); err != nil {
		return fmt.Errorf("advisory: encode catalog: %w", err)
	}
	return nil
}

// Lookup returns the advisory note for version, if one is catalogued.
func (c *Catalog) Lookup(version string) (Note, bool) {
	n, ok := c.Notes[version]
	return n, ok
}

// Add inserts or replaces the note for n.Version.
func (c *Catalog) Add(n Note) {
	c.Notes[n.Version] = n
}
