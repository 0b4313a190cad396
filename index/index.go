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

// Package index walks the HIKBTREE segment index: a singly linked list of
// fixed-layout pages holding one slot per recorded video segment. Despite
// the name, nothing here is a balanced tree — it is a linked list of pages,
// walked strictly by following each page's next-page pointer.
package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvrforensics/hikxtract/internal/diag"
)

// Fixed layout constants, per HIK.2011.03.08.
const (
	// magicOffset is relative to the primary index offset.
	magicOffset = 0x10
	magicLen    = 8

	// firstPageOffsetField is relative to the primary index offset. This
	// spec mandates reading the first page pointer directly from here; an
	// older, incompatible layout indirected through +0x50 and then +0x18,
	// which this parser deliberately does not attempt (see ErrBadIndexMagic).
	firstPageOffsetField = 0x58

	entryCountOffset = 0x10
	nextPageOffset   = 0x20
	firstSlotOffset  = 0x60

	// EntryStride is the byte width of one index slot.
	EntryStride = 48

	slotTombstoneOffset = 0x08
	slotChannelOffset    = 0x11
	slotStartOffset      = 0x18
	slotEndOffset        = 0x1C
	slotDataBlockOffset  = 0x20

	// RecordingSentinel marks a segment that is still being written.
	RecordingSentinel = 0x7FFFFFFF

	// EndOfChain terminates the page linked list.
	EndOfChain = 0xFFFFFFFFFFFFFFFF

	// MaxPages bounds traversal against cyclic or corrupted chains.
	MaxPages = 1000
)

// Magic is the required HIKBTREE signature.
var Magic = []byte("HIKBTREE")

// ErrBadIndexMagic indicates the primary index signature does not match Magic.
var ErrBadIndexMagic = errors.New("index: bad HIKBTREE signature")

// reader is the minimal decoding surface the index walker needs.
type reader interface {
	Uint8(offset int64) (uint8, error)
	Uint32(offset int64) (uint32, error)
	Uint64(offset int64) (uint64, error)
	Datetime(offset int64) (time.Time, error)
	Slice(start, end int64) ([]byte, error)
	Len() int64
}

// Entry is one decoded, live (non-tombstoned) segment index slot. It is a
// plain value copied out of the image at decode time; it holds no reference
// to the reader that produced it.
type Entry struct {
	Channel   uint8
	Recording bool

	// Start and End are the zero time.Time when Recording is true.
	Start time.Time
	End   time.Time

	// DataBlockOffset is the absolute byte offset of the segment's data block.
	DataBlockOffset uint64
}

// Walk decodes the full catalog of live segment entries from the primary
// index, in on-disk page-and-slot order. A page chain exceeding MaxPages
// terminates traversal, returns the catalog accumulated so far, and reports
// a diag.CodeIndexOverrun warning rather than failing the call.
func Walk(r reader, primaryIndexOffset uint64) ([]Entry, []diag.Warning, error) {
	magic, err := r.Slice(int64(primaryIndexOffset)+magicOffset, int64(primaryIndexOffset)+magicOffset+magicLen)
	if err != nil {
		return nil, nil, fmt.Errorf("index: read signature: %w", err)
	}
	if string(magic) != string(Magic) {
		return nil, nil, fmt.Errorf("%w: got %q", ErrBadIndexMagic, magic)
	}

	firstPage, err := r.Uint64(int64(primaryIndexOffset) + firstPageOffsetField)
	if err != nil {
		return nil, nil, fmt.Errorf("index: read first page pointer: %w", err)
	}

	var entries []Entry
	var warnings []diag.Warning

	page := firstPage
	for visited := 0; ; visited++ {
		if visited >= MaxPages {
			warnings = append(warnings, diag.New(diag.CodeIndexOverrun,
				fmt.Sprintf("index: page chain exceeded %d pages, stopping early", MaxPages)))
			break
		}

		entryCount, err := r.Uint32(int64(page) + entryCountOffset)
		if err != nil {
			return entries, warnings, fmt.Errorf("index: read entry count at page %#x: %w", page, err)
		}
		nextPage, err := r.Uint64(int64(page) + nextPageOffset)
		if err != nil {
			return entries, warnings, fmt.Errorf("index: read next-page pointer at page %#x: %w", page, err)
		}

		firstSlot := int64(page) + firstSlotOffset
		for i := uint32(0); i < entryCount; i++ {
			slotOffset := firstSlot + int64(i)*EntryStride
			entry, ok, err := decodeSlot(r, slotOffset)
			if err != nil {
				return entries, warnings, fmt.Errorf("index: decode slot at %#x: %w", slotOffset, err)
			}
			if ok {
				entries = append(entries, entry)
			}
		}

		if nextPage == EndOfChain {
			break
		}
		page = nextPage
	}

	return entries, warnings, nil
}

// decodeSlot decodes the slot at offset s, returning ok=false when the slot
// is tombstoned (has-footage flag non-zero).
func decodeSlot(r reader, s int64) (Entry, bool, error) {
	tombstone, err := r.Uint64(s + slotTombstoneOffset)
	if err != nil {
		return Entry{}, false, err
	}
	if tombstone != 0 {
		return Entry{}, false, nil
	}

	channel, err := r.Uint8(s + slotChannelOffset)
	if err != nil {
		return Entry{}, false, err
	}

	startRaw, err := r.Uint32(s + slotStartOffset)
	if err != nil {
		return Entry{}, false, err
	}

	offset, err := r.Uint64(s + slotDataBlockOffset)
	if err != nil {
		return Entry{}, false, err
	}

	if startRaw == RecordingSentinel {
		return Entry{
			Channel:         channel,
			Recording:       true,
			DataBlockOffset: offset,
		}, true, nil
	}

	start, err := r.Datetime(s + slotStartOffset)
	if err != nil {
		return Entry{}, false, err
	}
	end, err := r.Datetime(s + slotEndOffset)
	if err != nil {
		return Entry{}, false, err
	}

	return Entry{
		Channel:         channel,
		Recording:       false,
		Start:           start,
		End:             end,
		DataBlockOffset: offset,
	}, true, nil
}
