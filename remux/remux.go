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

// Package remux supplies the CLI-side sink that the carver writes to: either
// a plain file for raw elementary output, or a pipe into an external media
// tool that wraps the stream in a container. The carve package never
// imports this one -- it only ever sees an io.Writer.
package remux

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Driver opens the per-segment sink for one exported filename.
type Driver interface {
	Open(path string) (io.WriteCloser, error)
}

// RawFileDriver writes the carved elementary stream directly to a file,
// used for the --raw-h264 CLI mode.
type RawFileDriver struct{}

// Open creates path, truncating any existing content.
func (RawFileDriver) Open(path string) (io.WriteCloser, error) {
	f, err := os.Create(path) //nolint:gosec // operator-supplied output path
	if err != nil {
		return nil, fmt.Errorf("remux: create %s: %w", path, err)
	}
	return f, nil
}

// FFmpegDriver pipes the carved stream into an external ffmpeg process that
// repackages it into a playable container, per the invocation the source
// tool uses: -i - -c:v copy -bsf:v filter_units=pass_types=1-5 -aspect 4/3.
type FFmpegDriver struct {
	// Path names the ffmpeg binary to invoke; defaults to "ffmpeg" (resolved
	// via PATH) when empty.
	Path string
}

// Open starts ffmpeg with stdin piped from the returned writer and output
// directed at path. Closing the writer closes ffmpeg's stdin and waits for
// the process to exit; a non-zero exit becomes the error returned by Close.
func (d FFmpegDriver) Open(path string) (io.WriteCloser, error) {
	bin := d.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.Command(bin, //nolint:gosec // bin/path are operator-controlled, not attacker input
		"-i", "-",
		"-c:v", "copy",
		"-bsf:v", "filter_units=pass_types=1-5",
		"-aspect", "4/3",
		path,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("remux: ffmpeg stdin pipe: %w", err)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("remux: start ffmpeg: %w", err)
	}

	return &ffmpegSink{stdin: stdin, cmd: cmd}, nil
}

type ffmpegSink struct {
	stdin io.WriteCloser
	cmd   *exec.Cmd
}

func (s *ffmpegSink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *ffmpegSink) Close() error {
	closeErr := s.stdin.Close()
	waitErr := s.cmd.Wait()
	if waitErr != nil {
		return fmt.Errorf("remux: ffmpeg exited with error: %w", waitErr)
	}
	return closeErr
}
