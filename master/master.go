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

// Package master decodes the fixed-layout HIKVISION@HANGZHOU master
// control block at offset 0x200 of a DVR disk image.
package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvrforensics/hikxtract/internal/diag"
)

// Fixed layout, relative to Offset.
const (
	// Offset is the absolute image offset of the master block.
	Offset = 0x200
	// Len is the size of the master block region.
	Len = 0x160

	signatureOffset = 0x10
	signatureLen    = 18
	versionOffset   = 0x30
	versionLen      = 14
	capacityOffset  = 0x48

	sysLogOffsetOffset = 0x60
	sysLogSizeOffset   = 0x68

	videoAreaOffset = 0x78

	dataBlockSizeOffset   = 0x88
	totalDataBlocksOffset = 0x90

	primaryIndexOffsetOffset = 0x98
	primaryIndexSizeOffset   = 0xA0

	secondaryIndexOffsetOffset = 0xA8
	secondaryIndexSizeOffset   = 0xB0

	systemInitTimeOffset = 0xF0
)

// Magic is the required master-block signature.
var Magic = []byte("HIKVISION@HANGZHOU")

// SupportedVersion is the only version string this parser is validated
// against. Other versions parse best-effort; see Block.VersionSupported.
var SupportedVersion = "HIK.2011.03.08"

// ErrBadMagic indicates the master block signature does not match Magic.
var ErrBadMagic = errors.New("master: bad signature")

// reader is the minimal decoding surface master needs from an image.Reader,
// kept narrow so tests can supply a synthetic implementation without pulling
// in the image package's mmap backing.
type reader interface {
	Uint32(offset int64) (uint32, error)
	Uint64(offset int64) (uint64, error)
	Datetime(offset int64) (time.Time, error)
	Slice(start, end int64) ([]byte, error)
	Len() int64
}

// Block is an immutable decoded master control block.
type Block struct {
	Signature []byte
	Version   string

	Capacity uint64

	SystemLogOffset uint64
	SystemLogSize   uint64

	VideoAreaOffset uint64

	DataBlockSize   uint64
	TotalDataBlocks uint32

	PrimaryIndexOffset uint64
	PrimaryIndexSize   uint32

	SecondaryIndexOffset uint64
	SecondaryIndexSize   uint32

	SystemInitTime time.Time
}

// VersionSupported reports whether Version exactly matches SupportedVersion.
func (b *Block) VersionSupported() bool {
	return b.Version == SupportedVersion
}

// Decode reads and validates the master block from r. A version mismatch is
// reported as a diag.Warning, not an error; decoding proceeds best-effort per
// the documented layout in both cases, mirroring the source tool's policy of
// never guessing at an alternate layout but also never refusing a foreign
// version outright.
func Decode(r reader) (*Block, []diag.Warning, error) {
	if r.Len() < Offset+Len {
		return nil, nil, fmt.Errorf("master: image too short for master block (%d bytes)", r.Len())
	}

	sig, err := r.Slice(Offset+signatureOffset, Offset+signatureOffset+signatureLen)
	if err != nil {
		return nil, nil, fmt.Errorf("master: read signature: %w", err)
	}
	signature := append([]byte(nil), sig...)
	if string(signature) != string(Magic) {
		return nil, nil, fmt.Errorf("%w: got %q", ErrBadMagic, signature)
	}

	versionRaw, err := r.Slice(Offset+versionOffset, Offset+versionOffset+versionLen)
	if err != nil {
		return nil, nil, fmt.Errorf("master: read version: %w", err)
	}
	version := cleanVersion(versionRaw)

	block := &Block{
		Signature: signature,
		Version:   version,
	}

	var warnings []diag.Warning
	if !block.VersionSupported() {
		warnings = append(warnings, diag.New(diag.CodeUnsupportedVersion,
			fmt.Sprintf("master: unsupported version %q (expected %q)", version, SupportedVersion)))
	}

	if block.Capacity, err = r.Uint64(Offset + capacityOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read capacity: %w", err)
	}
	if block.SystemLogOffset, err = r.Uint64(Offset + sysLogOffsetOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read system log offset: %w", err)
	}
	if block.SystemLogSize, err = r.Uint64(Offset + sysLogSizeOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read system log size: %w", err)
	}
	if block.VideoAreaOffset, err = r.Uint64(Offset + videoAreaOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read video area offset: %w", err)
	}
	if block.DataBlockSize, err = r.Uint64(Offset + dataBlockSizeOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read data block size: %w", err)
	}
	if block.TotalDataBlocks, err = r.Uint32(Offset + totalDataBlocksOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read total data blocks: %w", err)
	}
	if block.PrimaryIndexOffset, err = r.Uint64(Offset + primaryIndexOffsetOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read primary index offset: %w", err)
	}
	if block.PrimaryIndexSize, err = r.Uint32(Offset + primaryIndexSizeOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read primary index size: %w", err)
	}
	if block.SecondaryIndexOffset, err = r.Uint64(Offset + secondaryIndexOffsetOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read secondary index offset: %w", err)
	}
	if block.SecondaryIndexSize, err = r.Uint32(Offset + secondaryIndexSizeOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read secondary index size: %w", err)
	}
	if block.SystemInitTime, err = r.Datetime(Offset + systemInitTimeOffset); err != nil {
		return nil, warnings, fmt.Errorf("master: read system init time: %w", err)
	}

	return block, warnings, nil
}

// cleanVersion trims trailing NUL padding from the fixed-width version field.
func cleanVersion(raw []byte) string {
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	return string(raw[:end])
}
