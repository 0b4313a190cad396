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

// Package hikxtract extracts recorded video footage from a HIKVISION@HANGZHOU
// DVR disk image: it opens the image (optionally unwrapping an archive),
// parses the master control block, walks the segment index, and carves each
// segment's MPEG program stream out to a sink the caller supplies.
package hikxtract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvrforensics/hikxtract/advisory"
	"github.com/dvrforensics/hikxtract/archive"
	"github.com/dvrforensics/hikxtract/export"
	"github.com/dvrforensics/hikxtract/image"
	"github.com/dvrforensics/hikxtract/internal/diag"
	"github.com/dvrforensics/hikxtract/master"
)

// Ordering re-exports export.Ordering for callers that only import this package.
type Ordering = export.Ordering

const (
	OrderingTime     = export.OrderingTime
	OrderingPhysical = export.OrderingPhysical
)

// Options configures one Run. Sink and Extension are required unless
// ListOnly or MasterOnly is set.
type Options struct {
	ListOnly      bool
	MasterOnly    bool
	ChannelFilter *uint8
	Ordering      Ordering
	Extension     string
	Sink          export.Sink

	// Advisory, when non-nil, is consulted for the master block's firmware
	// version and surfaced alongside the decode warnings.
	Advisory *advisory.Catalog
}

// Report is the result of one Run: everything the CLI needs to print a
// summary and, unless MasterOnly was set, the plan of every segment after
// filtering and ordering. Plans are listed under ListOnly as well, and a
// segment skipped during carving stays in Plans with a matching warning.
type Report struct {
	Master   *master.Block
	Warnings []diag.Warning
	Note     *advisory.Note
	Summary  export.Summary
	Plans    []export.Plan
}

// Open opens path as a DVR disk image. Archive containers (.zip, .7z, .rar)
// are detected by extension and unwrapped via the archive package, and a
// ".gz" file is decompressed via image.OpenGzip; anything else is opened
// directly as a raw image.
func Open(path string) (*image.Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case archive.IsArchiveExtension(ext):
		r, err := image.OpenArchived(path)
		if err != nil {
			return nil, fmt.Errorf("hikxtract: open archived image %s: %w", path, err)
		}
		return r, nil
	case ext == ".gz":
		r, err := image.OpenGzip(path)
		if err != nil {
			return nil, fmt.Errorf("hikxtract: open compressed image %s: %w", path, err)
		}
		return r, nil
	}

	r, err := image.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hikxtract: open image %s: %w", path, err)
	}
	return r, nil
}

// Run performs one full export pass over an already-opened image.
func Run(r *image.Reader, opts Options) (*Report, error) {
	block, warnings, summary, plans, err := export.Run(r, export.Options{
		ListOnly:      opts.ListOnly,
		MasterOnly:    opts.MasterOnly,
		ChannelFilter: opts.ChannelFilter,
		Ordering:      opts.Ordering,
		Extension:     opts.Extension,
	}, opts.Sink)
	if err != nil {
		return nil, err
	}

	report := &Report{Master: block, Warnings: warnings, Summary: summary, Plans: plans}
	if opts.Advisory != nil && block != nil {
		if n, ok := opts.Advisory.Lookup(block.Version); ok {
			report.Note = &n
		}
	}
	return report, nil
}
