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

// Package carve extracts an MPEG program-stream payload out of a raw video
// data block by locating successive pack-start codes and writing the bytes
// between them to a sink.
package carve

import (
	"io"

	dvrbinary "github.com/dvrforensics/hikxtract/internal/binary"
)

// PackStartCode is the four-byte MPEG-PS pack_start_code.
var PackStartCode = []byte{0x00, 0x00, 0x01, 0xBA}

// Bounds on the two search windows, in bytes. See Carve for their role.
const (
	leadWindow     = 4096
	packetWindow   = 120 * 1024
	contiguityGap  = 512
	startCodeWidth = 4 // len(PackStartCode)
)

// Result reports how carving ended.
type Result int

const (
	// Empty means no pack-start code was found at all; nothing was written.
	Empty Result = iota
	// Done means carving ran to completion; the final partial packet (if
	// any) was deliberately not written, since no end delimiter was found.
	Done
	// SinkClosed means a write to the sink failed. The carver treats this
	// as a terminal success: the caller's sink is presumed to have closed
	// downstream (e.g. a cancelled pipe to an external remuxer).
	SinkClosed
)

// Carve locates successive MPEG-PS pack-start codes in data and writes each
// inter-packet span to w, in on-disk order. It never reads past len(data).
func Carve(data []byte, w io.Writer) (Result, error) {
	a := find(data, 0, leadWindow)
	if a == -1 {
		return Empty, nil
	}

	for {
		b := find(data, a+startCodeWidth+1, packetWindow)
		if b == -1 {
			return Done, nil
		}

		if _, err := w.Write(data[a:b]); err != nil {
			return SinkClosed, nil
		}

		a = find(data, b, contiguityGap)
		if a == -1 {
			return Done, nil
		}
	}
}

// find searches for PackStartCode in data starting at from, within a window
// of at most maxLen bytes, and returns the absolute index or -1.
func find(data []byte, from, maxLen int64) int64 {
	if from < 0 || from >= int64(len(data)) {
		return -1
	}
	stop := from + maxLen
	if stop > int64(len(data)) {
		stop = int64(len(data))
	}
	if stop <= from {
		return -1
	}
	idx := dvrbinary.FindBytes(data[from:stop], PackStartCode)
	if idx == -1 {
		return -1
	}
	return from + int64(idx)
}
