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

package archive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// imageExtensions are file extensions that indicate a raw disk image.
// This only includes unambiguous extensions that can be identified without
// header analysis.
var imageExtensions = map[string]bool{
	".dd":  true,
	".img": true,
	".bin": true,
	".raw": true,
	".dvr": true,
}

// IsImageFile checks if a filename has a recognized raw disk image extension.
func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return imageExtensions[ext]
}

// DetectImageFile finds the member of arc most likely to be the DVR disk
// image. It first looks for a recognized image extension; if none matches,
// it falls back to the largest member in the archive, since forensic bundles
// often wrap the raw image with an unconventional or missing extension.
func DetectImageFile(arc Archive) (string, error) {
	files, err := arc.List()
	if err != nil {
		return "", fmt.Errorf("list archive files: %w", err)
	}
	if len(files) == 0 {
		return "", NoImageFilesError{Archive: "archive"}
	}

	for _, file := range files {
		if IsImageFile(file.Name) {
			return file.Name, nil
		}
	}

	largest := files[0]
	for _, file := range files[1:] {
		if file.Size > largest.Size {
			largest = file
		}
	}
	return largest.Name, nil
}
