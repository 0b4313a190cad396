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

package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/dvrforensics/hikxtract/index"
)

// memSink is an in-memory Sink used by tests in place of a real directory.
type memSink struct {
	files map[string]*bytes.Buffer
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string]*bytes.Buffer)}
}

func (m *memSink) Exists(name string) bool {
	_, ok := m.files[name]
	return ok
}

type memWriter struct {
	name string
	sink *memSink
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriter) Close() error {
	w.sink.files[w.name] = &w.buf
	return nil
}

func (m *memSink) Create(name string) (WriteCloser, error) {
	return &memWriter{name: name, sink: m}, nil
}

func mk(channel uint8, recording bool, start, end time.Time, offset uint64) index.Entry {
	return index.Entry{Channel: channel, Recording: recording, Start: start, End: end, DataBlockOffset: offset}
}

func TestFilterChannel(t *testing.T) {
	t.Parallel()

	entries := []index.Entry{mk(1, false, time.Time{}, time.Time{}, 0), mk(2, false, time.Time{}, time.Time{}, 0)}
	ch := uint8(2)
	got := filterChannel(entries, &ch)
	if len(got) != 1 || got[0].Channel != 2 {
		t.Fatalf("filterChannel = %+v, want only channel 2", got)
	}
}

func TestOrderTimePutsRecordingFirst(t *testing.T) {
	t.Parallel()

	completed := mk(1, false, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), 0)
	recording := mk(1, true, time.Time{}, time.Time{}, 0)

	got := order([]index.Entry{completed, recording}, OrderingTime)
	if !got[0].Recording {
		t.Fatalf("order(time) = %+v, want recording entry first", got)
	}
}

func TestOrderPhysicalDescending(t *testing.T) {
	t.Parallel()

	low := mk(1, false, time.Time{}, time.Time{}, 0x1000)
	high := mk(1, false, time.Time{}, time.Time{}, 0x9000)

	got := order([]index.Entry{low, high}, OrderingPhysical)
	if got[0].DataBlockOffset != 0x9000 || got[1].DataBlockOffset != 0x1000 {
		t.Fatalf("order(physical) = %+v, want descending offsets", got)
	}
}

func TestFilenamePolicy(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC)
	end := time.Date(2026, 3, 4, 6, 7, 0, 0, time.UTC)

	cases := []struct {
		name     string
		entry    index.Entry
		ordering Ordering
		seq      int
		want     string
	}{
		{"recording-time", mk(1, true, time.Time{}, time.Time{}, 0), OrderingTime, 0, "CH-01__RECORDING.mp4"},
		{"completed-time", mk(2, false, start, end, 0), OrderingTime, 0, "CH-02__2026-03-04-05-06__2026-03-04-06-07.mp4"},
		{"recording-physical", mk(3, true, time.Time{}, time.Time{}, 0), OrderingPhysical, 7, "CH-03__seq000007__RECORDING.mp4"},
		{"completed-physical", mk(4, false, start, end, 0), OrderingPhysical, 12, "CH-04__seq000012.mp4"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := filename(tc.entry, tc.ordering, tc.seq, "mp4")
			if got != tc.want {
				t.Errorf("filename() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCollisionAppendsSuffix(t *testing.T) {
	t.Parallel()

	sink := newMemSink()
	sink.files["CH-01__RECORDING.mp4"] = &bytes.Buffer{}
	sink.files["CH-01__RECORDING_1.mp4"] = &bytes.Buffer{}
	planned := make(map[string]bool)

	got := resolveCollision(sink, planned, "CH-01__RECORDING.mp4")
	if got != "CH-01__RECORDING_2.mp4" {
		t.Errorf("resolveCollision() = %q, want CH-01__RECORDING_2.mp4", got)
	}

	// A name that exists neither in the sink nor in planned is returned as is.
	if resolveCollision(sink, planned, "CH-02__RECORDING.mp4") != "CH-02__RECORDING.mp4" {
		t.Error("resolveCollision() should leave non-colliding names untouched")
	}
}

func TestResolveCollisionAgainstPlannedNotYetCreated(t *testing.T) {
	t.Parallel()

	// Two segments rendering to the same base name, neither yet written to
	// the sink, must still diverge -- this is the gap closed by tracking
	// names claimed earlier in the same planning pass, not just sink.Exists.
	sink := newMemSink()
	planned := make(map[string]bool)

	first := resolveCollision(sink, planned, "CH-01__RECORDING.mp4")
	planned[first] = true
	second := resolveCollision(sink, planned, "CH-01__RECORDING.mp4")

	if first == second {
		t.Fatalf("resolveCollision() returned %q for both segments, want distinct names", first)
	}
	if second != "CH-01__RECORDING_1.mp4" {
		t.Errorf("resolveCollision() second call = %q, want CH-01__RECORDING_1.mp4", second)
	}
}
