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

package carve

import (
	"bytes"
	"errors"
	"testing"
)

func packet(payload byte, n int) []byte {
	buf := make([]byte, 0, len(PackStartCode)+n)
	buf = append(buf, PackStartCode...)
	for i := 0; i < n; i++ {
		buf = append(buf, payload)
	}
	return buf
}

func TestCarveEmptyOnNoStartCode(t *testing.T) {
	t.Parallel()

	data := make([]byte, 8192)
	var out bytes.Buffer

	res, err := Carve(data, &out)
	if err != nil {
		t.Fatalf("Carve: %v", err)
	}
	if res != Empty {
		t.Errorf("Result = %v, want Empty", res)
	}
	if out.Len() != 0 {
		t.Errorf("wrote %d bytes, want 0", out.Len())
	}
}

func TestCarveRoundTrip(t *testing.T) {
	t.Parallel()

	p1 := packet(0xAA, 100)
	p2 := packet(0xBB, 200)
	p3 := packet(0xCC, 50) // final packet, never written (no trailing delimiter)

	data := append(append(append([]byte{}, p1...), p2...), p3...)

	var out bytes.Buffer
	res, err := Carve(data, &out)
	if err != nil {
		t.Fatalf("Carve: %v", err)
	}
	if res != Done {
		t.Fatalf("Result = %v, want Done", res)
	}

	want := append(append([]byte{}, p1...), p2...)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("output length = %d, want %d", out.Len(), len(want))
	}
}

func TestCarveTrailingPartialPacketDropped(t *testing.T) {
	t.Parallel()

	p1 := packet(0xAA, 10)
	data := p1 // only one start code in the whole block

	var out bytes.Buffer
	res, err := Carve(data, &out)
	if err != nil {
		t.Fatalf("Carve: %v", err)
	}
	if res != Done {
		t.Fatalf("Result = %v, want Done", res)
	}
	if out.Len() != 0 {
		t.Errorf("wrote %d bytes for a lone start code, want 0", out.Len())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("downstream closed")
}

func TestCarveSinkClosedIsTerminalSuccess(t *testing.T) {
	t.Parallel()

	p1 := packet(0xAA, 10)
	p2 := packet(0xBB, 10)
	data := append(append([]byte{}, p1...), p2...)

	res, err := Carve(data, failingWriter{})
	if err != nil {
		t.Fatalf("Carve returned error %v, want nil (SinkClosed is a terminal success)", err)
	}
	if res != SinkClosed {
		t.Errorf("Result = %v, want SinkClosed", res)
	}
}

func TestCarveAllZeroBlock(t *testing.T) {
	t.Parallel()

	data := make([]byte, 200*1024)
	var out bytes.Buffer

	res, err := Carve(data, &out)
	if err != nil {
		t.Fatalf("Carve: %v", err)
	}
	if res != Empty {
		t.Errorf("Result = %v, want Empty", res)
	}
}
