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

package hikxtract

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvrforensics/hikxtract/advisory"
	"github.com/dvrforensics/hikxtract/carve"
	"github.com/dvrforensics/hikxtract/export"
	"github.com/dvrforensics/hikxtract/image"
	"github.com/dvrforensics/hikxtract/index"
	"github.com/dvrforensics/hikxtract/internal/diag"
	"github.com/dvrforensics/hikxtract/master"
)

// dirSink adapts a plain directory to export.Sink for end-to-end tests.
type dirSink struct{ dir string }

func (s dirSink) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

type fileWriteCloser struct{ *os.File }

func (s dirSink) Create(name string) (export.WriteCloser, error) {
	f, err := os.Create(filepath.Join(s.dir, name)) //nolint:gosec // test-local temp dir
	if err != nil {
		return nil, err
	}
	return fileWriteCloser{f}, nil
}

func buildFullImage(t *testing.T) []byte {
	t.Helper()

	const (
		masterOffset = master.Offset
		primaryIndex = 0x10000
		page         = 0x20000
		dataBlock    = 0x30000
		blockSize    = 0x10000
	)

	data := make([]byte, dataBlock+blockSize)

	copy(data[masterOffset+0x10:], master.Magic)
	copy(data[masterOffset+0x30:], master.SupportedVersion)
	binary.LittleEndian.PutUint64(data[masterOffset+0x88:], blockSize)
	binary.LittleEndian.PutUint32(data[masterOffset+0x90:], 1)
	binary.LittleEndian.PutUint64(data[masterOffset+0x98:], primaryIndex)
	binary.LittleEndian.PutUint32(data[masterOffset+0xA0:], 0x1000)
	binary.LittleEndian.PutUint64(data[masterOffset+0xA8:], 0x900000)
	binary.LittleEndian.PutUint32(data[masterOffset+0xB0:], 0x1000)
	binary.LittleEndian.PutUint32(data[masterOffset+0xF0:], 1700000000)

	copy(data[primaryIndex+0x10:], index.Magic)
	binary.LittleEndian.PutUint64(data[primaryIndex+0x58:], page)

	binary.LittleEndian.PutUint32(data[page+0x10:], 1)
	binary.LittleEndian.PutUint64(data[page+0x20:], index.EndOfChain)

	slot := page + 0x60
	binary.LittleEndian.PutUint64(data[slot+0x08:], 0) // not tombstoned
	data[slot+0x11] = 9                                // channel
	binary.LittleEndian.PutUint32(data[slot+0x18:], 1700000000)
	binary.LittleEndian.PutUint32(data[slot+0x1C:], 1700000060)
	binary.LittleEndian.PutUint64(data[slot+0x20:], dataBlock)

	// Two PS packets in the data block, matching carve's algorithm.
	copy(data[dataBlock:], carve.PackStartCode)
	copy(data[dataBlock+200:], carve.PackStartCode)

	return data
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	data := buildFullImage(t)
	r, err := image.OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer func() { _ = r.Close() }()

	cat := advisory.NewCatalog()
	cat.Add(advisory.Note{Version: master.SupportedVersion, Summary: "validated", KnownGood: true})

	outDir := t.TempDir()
	report, err := Run(r, Options{
		Ordering:  OrderingTime,
		Extension: "h264",
		Sink:      dirSink{dir: outDir},
		Advisory:  cat,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Note == nil || !report.Note.KnownGood {
		t.Fatalf("Note = %+v, want a known-good match", report.Note)
	}
	if len(report.Plans) != 1 {
		t.Fatalf("len(Plans) = %d, want 1", len(report.Plans))
	}

	out, err := os.ReadFile(filepath.Join(outDir, report.Plans[0].Filename))
	if err != nil {
		t.Fatalf("ReadFile output: %v", err)
	}
	if !bytes.HasPrefix(out, carve.PackStartCode) {
		t.Errorf("carved output does not start with pack-start code: %x", out[:4])
	}
}

// buildImageWithOneBadOffset builds an image whose index catalogs two
// segments on channel 9: the first's data-block offset runs past the end of
// the image (simulating a corrupt/truncated acquisition), the second is
// wholly valid. Per §7, the bad segment must be skipped with a diagnostic
// rather than aborting extraction of the good one.
func buildImageWithOneBadOffset(t *testing.T) []byte {
	t.Helper()

	const (
		masterOffset = master.Offset
		primaryIndex = 0x10000
		page         = 0x20000
		dataBlock    = 0x30000
		blockSize    = 0x10000
	)

	data := make([]byte, dataBlock+blockSize)

	copy(data[masterOffset+0x10:], master.Magic)
	copy(data[masterOffset+0x30:], master.SupportedVersion)
	binary.LittleEndian.PutUint64(data[masterOffset+0x88:], blockSize)
	binary.LittleEndian.PutUint32(data[masterOffset+0x90:], 2)
	binary.LittleEndian.PutUint64(data[masterOffset+0x98:], primaryIndex)
	binary.LittleEndian.PutUint32(data[masterOffset+0xA0:], 0x1000)
	binary.LittleEndian.PutUint32(data[masterOffset+0xF0:], 1700000000)

	copy(data[primaryIndex+0x10:], index.Magic)
	binary.LittleEndian.PutUint64(data[primaryIndex+0x58:], page)

	binary.LittleEndian.PutUint32(data[page+0x10:], 2)
	binary.LittleEndian.PutUint64(data[page+0x20:], index.EndOfChain)

	// Slot 0: data-block offset runs past end of image.
	bad := page + 0x60
	binary.LittleEndian.PutUint64(data[bad+0x08:], 0)
	data[bad+0x11] = 9
	binary.LittleEndian.PutUint32(data[bad+0x18:], 1700000000)
	binary.LittleEndian.PutUint32(data[bad+0x1C:], 1700000060)
	binary.LittleEndian.PutUint64(data[bad+0x20:], uint64(len(data)))

	// Slot 1: wholly valid, carvable segment.
	good := bad + index.EntryStride
	binary.LittleEndian.PutUint64(data[good+0x08:], 0)
	data[good+0x11] = 9
	binary.LittleEndian.PutUint32(data[good+0x18:], 1700000200)
	binary.LittleEndian.PutUint32(data[good+0x1C:], 1700000260)
	binary.LittleEndian.PutUint64(data[good+0x20:], dataBlock)

	copy(data[dataBlock:], carve.PackStartCode)
	copy(data[dataBlock+200:], carve.PackStartCode)

	return data
}

func TestRunSkipsSegmentWithOutOfRangeOffsetAndContinues(t *testing.T) {
	t.Parallel()

	data := buildImageWithOneBadOffset(t)
	r, err := image.OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer func() { _ = r.Close() }()

	outDir := t.TempDir()
	report, err := Run(r, Options{
		Ordering:  OrderingTime,
		Extension: "h264",
		Sink:      dirSink{dir: outDir},
	})
	if err != nil {
		t.Fatalf("Run: %v, want the bad segment to be skipped, not fatal", err)
	}
	if len(report.Plans) != 2 {
		t.Fatalf("len(Plans) = %d, want 2 (both planned even though one fails to carve)", len(report.Plans))
	}

	foundSkipWarning := false
	for _, w := range report.Warnings {
		if w.Code == diag.CodeSegmentSkipped {
			foundSkipWarning = true
		}
	}
	if !foundSkipWarning {
		t.Errorf("Warnings = %+v, want a CodeSegmentSkipped entry for the out-of-range segment", report.Warnings)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("output files = %d, want exactly 1 (only the good segment carved)", len(entries))
	}
}

func TestOpenRejectsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.dd"))
	if err == nil {
		t.Fatal("Open() on missing file expected an error")
	}
}
