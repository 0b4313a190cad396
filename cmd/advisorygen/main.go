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

// Command advisorygen writes the gob/gzip firmware advisory catalog consumed
// by the hikxtract CLI. Unlike the upstream game-metadata generator this
// catalog has no public upstream feed to pull from, so the seed entries are
// maintained directly in this file.
package main

import (
	"fmt"
	"os"

	"github.com/dvrforensics/hikxtract/advisory"
	"github.com/dvrforensics/hikxtract/master"
)

var seed = []advisory.Note{
	{
		Version:   master.SupportedVersion,
		Summary:   "Validated layout; field offsets confirmed against known-good images.",
		KnownGood: true,
	},
	{
		Version:   "HIK.2009.11.17",
		Summary:   "Earlier revision seen in the field; master block layout appears compatible but is unconfirmed.",
		KnownGood: false,
	},
	{
		Version:   "HIK.2013.05.20",
		Summary:   "Later revision; reported to add fields beyond the end of the parsed master block region.",
		KnownGood: false,
	},
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <output.gob.gz>\n", os.Args[0])
		os.Exit(1)
	}
	outputPath := os.Args[1]

	cat := advisory.NewCatalog()
	for _, n := range seed {
		cat.Add(n)
	}

	if err := cat.Save(outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d advisory entries to %s\n", len(seed), outputPath)
}
