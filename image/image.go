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

// Package image presents a raw DVR disk image as an immutable,
// memory-mapped, random-access byte array.
package image

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/dvrforensics/hikxtract/archive"
	dvrbinary "github.com/dvrforensics/hikxtract/internal/binary"
)

// Sentinel errors for image access. Wrapped with context via fmt.Errorf.
var (
	// ErrEmptyImage indicates the image file has zero length.
	ErrEmptyImage = errors.New("image: empty image")

	// ErrOutOfRange indicates a decode or slice request falls past the end of the image.
	ErrOutOfRange = errors.New("image: offset out of range")
)

// Reader is an immutable, memory-mapped view over a raw disk image.
// A Reader is safe for concurrent read-only use from multiple goroutines;
// nothing in this package mutates the mapping.
type Reader struct {
	file *os.File
	data mmap.MMap

	// tempPath is set by OpenArchived and removed on Close.
	tempPath string
}

// Open memory-maps the file at path for read-only access.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // path is operator-supplied forensic input
	if err != nil {
		return nil, fmt.Errorf("image: open %s: %w", path, err)
	}

	size, err := imageSize(file, path)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if size == 0 {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, path)
	}

	// Block devices generally cannot report their size through Stat, so the
	// mapping length must be supplied explicitly via MapRegion; regular
	// files use the simpler whole-file Map.
	var data mmap.MMap
	if isBlockDevice(path) {
		data, err = mmap.MapRegion(file, int(size), mmap.RDONLY, 0, 0)
	} else {
		data, err = mmap.Map(file, mmap.RDONLY, 0)
	}
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("image: mmap %s: %w", path, err)
	}

	return &Reader{file: file, data: data}, nil
}

// imageSize returns the addressable size of the opened file. Regular files
// report an accurate size via Stat; raw block devices typically report zero
// there, so this falls back to seeking to the end of the device.
func imageSize(file *os.File, path string) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("image: stat %s: %w", path, err)
	}
	if size := info.Size(); size > 0 || !isBlockDevice(path) {
		return size, nil
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("image: determine size of block device %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("image: rewind block device %s: %w", path, err)
	}
	return size, nil
}

// OpenBytes wraps an in-memory byte slice as a Reader, bypassing the file
// system and mmap entirely. Used by tests; archived and gzip-compressed
// images go through a temporary file instead (see OpenArchived, OpenGzip).
func OpenBytes(data []byte) (*Reader, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return &Reader{data: mmap.MMap(data)}, nil
}

// OpenArchived opens a DVR disk image stored inside a zip/7z/rar archive at
// archivePath. It detects the most likely image member with
// archive.DetectImageFile, buffers it into a temporary file, and mmaps that
// file the same way Open does. The temporary file is removed when the
// returned Reader is closed.
func OpenArchived(archivePath string) (*Reader, error) {
	arc, err := archive.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("image: open archive %s: %w", archivePath, err)
	}
	defer func() { _ = arc.Close() }()

	member, err := archive.DetectImageFile(arc)
	if err != nil {
		return nil, fmt.Errorf("image: detect image in %s: %w", archivePath, err)
	}

	src, _, err := arc.Open(member)
	if err != nil {
		return nil, fmt.Errorf("image: open member %s in %s: %w", member, archivePath, err)
	}
	defer func() { _ = src.Close() }()

	return openBuffered(src, fmt.Sprintf("buffer member %s", member))
}

// OpenGzip transparently decompresses a gzip-compressed disk image (a common
// distribution form for forensic exports, e.g. "disk.dd.gz") into a temporary
// file and mmaps that file the same way Open does.
func OpenGzip(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied forensic input
	if err != nil {
		return nil, fmt.Errorf("image: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("image: gzip reader for %s: %w", path, err)
	}
	defer func() { _ = gz.Close() }()

	return openBuffered(gz, fmt.Sprintf("decompress %s", path))
}

// openBuffered copies src into a temporary file and opens that file as a
// Reader, removing the temp file on Close. action names the operation for
// error messages.
func openBuffered(src io.Reader, action string) (*Reader, error) {
	tmp, err := os.CreateTemp("", "hikxtract-*.img")
	if err != nil {
		return nil, fmt.Errorf("image: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("image: %s: %w", action, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("image: close temp file: %w", err)
	}

	r, err := Open(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	r.tempPath = tmpPath
	return r, nil
}

// Close releases the memory mapping and closes the underlying file, if any.
// Every slice view and decoded value obtained from this Reader becomes
// invalid for further mapped access once Close returns; per-segment catalog
// values are plain copies and remain valid.
func (r *Reader) Close() error {
	var err error
	if r.file != nil {
		if uerr := r.data.Unmap(); uerr != nil {
			err = fmt.Errorf("image: unmap: %w", uerr)
		}
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("image: close: %w", cerr)
		}
	}
	if r.tempPath != "" {
		if rerr := os.Remove(r.tempPath); rerr != nil && err == nil {
			err = fmt.Errorf("image: remove temp file: %w", rerr)
		}
	}
	return err
}

// Len returns the total image size in bytes.
func (r *Reader) Len() int64 {
	return int64(len(r.data))
}

// ReadAt implements io.ReaderAt over the mapped image.
func (r *Reader) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return 0, fmt.Errorf("%w: offset %d", ErrOutOfRange, offset)
	}
	n := copy(buf, r.data[offset:])
	if n < len(buf) {
		return n, fmt.Errorf("%w: short read at offset %d", ErrOutOfRange, offset)
	}
	return n, nil
}

// Uint8 decodes a single byte at offset.
func (r *Reader) Uint8(offset int64) (uint8, error) {
	v, err := dvrbinary.ReadUint8At(r, offset)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	return v, nil
}

// Uint32 decodes a little-endian uint32 at offset.
func (r *Reader) Uint32(offset int64) (uint32, error) {
	v, err := dvrbinary.ReadUint32LEAt(r, offset)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	return v, nil
}

// Uint64 decodes a little-endian uint64 at offset.
func (r *Reader) Uint64(offset int64) (uint64, error) {
	v, err := dvrbinary.ReadUint64LEAt(r, offset)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	return v, nil
}

// Datetime decodes a little-endian uint32 at offset as UTC seconds since the
// Unix epoch. A value of zero is a valid timestamp, not a sentinel.
func (r *Reader) Datetime(offset int64) (time.Time, error) {
	t, err := dvrbinary.ReadDatetimeAt(r, offset)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	return t, nil
}

// Slice returns the byte range [start, end) of the image. The returned slice
// aliases the mapping and must not outlive Close.
func (r *Reader) Slice(start, end int64) ([]byte, error) {
	if start < 0 || end < start || end > int64(len(r.data)) {
		return nil, fmt.Errorf("%w: slice [%d, %d)", ErrOutOfRange, start, end)
	}
	return r.data[start:end], nil
}

// Find searches for needle within [start, min(start+maxLen, Len())) and
// returns the absolute offset of the first match, or -1 if not found.
func (r *Reader) Find(needle []byte, start, maxLen int64) (int64, error) {
	return dvrbinary.FindBytesInRange(r, start, r.Len(), maxLen, needle)
}
