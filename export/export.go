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

// Package export composes the catalog filter/sort policy and the per-segment
// carve run: open image, parse master, walk index, filter/sort, then carve
// each segment's data block to a caller-provided sink.
package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvrforensics/hikxtract/carve"
	"github.com/dvrforensics/hikxtract/index"
	"github.com/dvrforensics/hikxtract/internal/diag"
	"github.com/dvrforensics/hikxtract/master"
)

// Ordering selects how the catalog is sorted before export.
type Ordering int

const (
	// OrderingTime sorts by (start timestamp, channel), with in-progress
	// segments sorted first.
	OrderingTime Ordering = iota
	// OrderingPhysical sorts by data-block offset, descending.
	OrderingPhysical
)

// reader is the minimal decoding surface export needs from an image.Reader.
type reader interface {
	Uint32(offset int64) (uint32, error)
	Uint64(offset int64) (uint64, error)
	Uint8(offset int64) (uint8, error)
	Datetime(offset int64) (time.Time, error)
	Slice(start, end int64) ([]byte, error)
	Len() int64
}

// Sink resolves output filenames against whatever backing store the caller
// provides (a directory on disk, an in-memory map for tests) and opens
// writers for carving. Exists and Create together implement the collision
// resolution policy in resolveCollision.
type Sink interface {
	// Exists reports whether name already has content under this sink.
	Exists(name string) bool
	// Create opens name for writing, truncating any prior content.
	Create(name string) (WriteCloser, error)
}

// WriteCloser is the minimal per-segment output handle the carver writes to.
type WriteCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// Options configures one export run.
type Options struct {
	ListOnly      bool
	MasterOnly    bool
	ChannelFilter *uint8
	Ordering      Ordering
	// Extension names the output file extension, chosen by the caller based
	// on whether a raw elementary stream or a remuxed container is wanted.
	Extension string
}

// Summary is the channel/footage breakdown printed before export: a count
// of live segments per channel.
type Summary struct {
	ChannelBlockCounts map[uint8]int
}

// ChannelsSorted returns the channels present in the summary in ascending order.
func (s Summary) ChannelsSorted() []uint8 {
	channels := make([]uint8, 0, len(s.ChannelBlockCounts))
	for ch := range s.ChannelBlockCounts {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

// Plan is one segment's resolved export action: the filename it was given
// and the absolute byte range of its data block inside the image.
type Plan struct {
	Entry     index.Entry
	Filename  string
	RangeFrom int64
	RangeTo   int64
}

// Run executes one export pass: parse master, walk index, summarize,
// filter/sort, and (unless ListOnly or MasterOnly) carve every segment.
func Run(r reader, opts Options, sink Sink) (*master.Block, []diag.Warning, Summary, []Plan, error) {
	block, warnings, err := master.Decode(r)
	if err != nil {
		return nil, nil, Summary{}, nil, fmt.Errorf("export: decode master block: %w", err)
	}
	if opts.MasterOnly {
		return block, warnings, Summary{}, nil, nil
	}

	entries, indexWarnings, err := index.Walk(r, block.PrimaryIndexOffset)
	warnings = append(warnings, indexWarnings...)
	if err != nil {
		return block, warnings, Summary{}, nil, fmt.Errorf("export: walk index: %w", err)
	}

	summary := summarize(entries)

	filtered := filterChannel(entries, opts.ChannelFilter)
	ordered := order(filtered, opts.Ordering)

	plans := make([]Plan, 0, len(ordered))
	seq := 0
	planned := make(map[string]bool, len(ordered))
	for _, e := range ordered {
		seq++
		name := filename(e, opts.Ordering, seq, opts.Extension)
		name = resolveCollision(sink, planned, name)
		planned[name] = true

		from := int64(e.DataBlockOffset)
		to := from + int64(block.DataBlockSize)
		plans = append(plans, Plan{Entry: e, Filename: name, RangeFrom: from, RangeTo: to})
	}

	if opts.ListOnly {
		return block, warnings, summary, plans, nil
	}

	// A segment's slice/create/close failure is not fatal to the run: a
	// forensic image is exactly the kind of input where one out-of-range
	// offset_datablock or unopenable output must not cost every other,
	// otherwise-good segment. The failing segment is skipped with a
	// diag.Warning and the next one is attempted.
	for _, p := range plans {
		data, err := r.Slice(p.RangeFrom, p.RangeTo)
		if err != nil {
			warnings = append(warnings, diag.New(diag.CodeSegmentSkipped,
				fmt.Sprintf("export: channel %d: skipped, slice data block: %v", p.Entry.Channel, err)))
			continue
		}

		w, err := sink.Create(p.Filename)
		if err != nil {
			warnings = append(warnings, diag.New(diag.CodeSegmentSkipped,
				fmt.Sprintf("export: channel %d: skipped, create sink %s: %v", p.Entry.Channel, p.Filename, err)))
			continue
		}

		_, carveErr := carve.Carve(data, w)
		closeErr := w.Close()
		if carveErr != nil {
			warnings = append(warnings, diag.New(diag.CodeSegmentSkipped,
				fmt.Sprintf("export: channel %d: skipped, carve: %v", p.Entry.Channel, carveErr)))
			continue
		}
		if closeErr != nil {
			warnings = append(warnings, diag.New(diag.CodeSegmentSkipped,
				fmt.Sprintf("export: channel %d: skipped, close sink %s: %v", p.Entry.Channel, p.Filename, closeErr)))
			continue
		}
	}

	return block, warnings, summary, plans, nil
}

func summarize(entries []index.Entry) Summary {
	counts := make(map[uint8]int, 8)
	for _, e := range entries {
		counts[e.Channel]++
	}
	return Summary{ChannelBlockCounts: counts}
}

func filterChannel(entries []index.Entry, channel *uint8) []index.Entry {
	if channel == nil {
		return entries
	}
	out := make([]index.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Channel == *channel {
			out = append(out, e)
		}
	}
	return out
}

func order(entries []index.Entry, ordering Ordering) []index.Entry {
	out := make([]index.Entry, len(entries))
	copy(out, entries)

	switch ordering {
	case OrderingPhysical:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].DataBlockOffset > out[j].DataBlockOffset
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			ki, kj := timeSortKey(out[i]), timeSortKey(out[j])
			if ki != kj {
				return ki < kj
			}
			return out[i].Channel < out[j].Channel
		})
	}
	return out
}

// timeSortKey produces the synthetic "00REC-<chan>" key for in-progress
// segments so they sort before any real timestamp key, which always begins
// with a four-digit year.
func timeSortKey(e index.Entry) string {
	if e.Recording {
		return fmt.Sprintf("00REC-%02d", e.Channel)
	}
	return e.Start.Format("200601021504")
}

func filename(e index.Entry, ordering Ordering, seq int, ext string) string {
	switch {
	case ordering == OrderingPhysical && e.Recording:
		return fmt.Sprintf("CH-%02d__seq%06d__RECORDING.%s", e.Channel, seq, ext)
	case ordering == OrderingPhysical:
		return fmt.Sprintf("CH-%02d__seq%06d.%s", e.Channel, seq, ext)
	case e.Recording:
		return fmt.Sprintf("CH-%02d__RECORDING.%s", e.Channel, ext)
	default:
		return fmt.Sprintf("CH-%02d__%s__%s.%s", e.Channel,
			e.Start.Format("2006-01-02-15-04"), e.End.Format("2006-01-02-15-04"), ext)
	}
}

// resolveCollision appends "_<k>" before the extension for the smallest
// k >= 1 that is not already present in sink and not already claimed by an
// earlier segment in this same run (planned), leaving name untouched when it
// does not collide with either. Checking planned in addition to sink.Exists
// is what keeps two segments that render to the same base name (e.g. two
// completed segments sharing a channel and start/end) from both resolving to
// the same name before either file has actually been created.
func resolveCollision(sink Sink, planned map[string]bool, name string) string {
	// A nil sink (ListOnly/MasterOnly runs) holds no existing files.
	exists := func(n string) bool { return sink != nil && sink.Exists(n) }
	if !exists(name) && !planned[name] {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for k := 1; ; k++ {
		candidate := fmt.Sprintf("%s_%d%s", base, k, ext)
		if !exists(candidate) && !planned[candidate] {
			return candidate
		}
	}
}
