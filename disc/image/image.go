// This file is part of gopsx.
//
// gopsx is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// gopsx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with gopsx.  If not, see <https://www.gnu.org/licenses/>.

// Package image is the thin disc-image collaborator spec.md §6
// describes: a read-only, sector-addressed byte stream over either a
// plain 2048-byte-per-sector ISO file or a 2352-byte-per-sector raw
// image, auto-detected by the sync pattern and mode byte at the start
// of sector 0. A CUE sheet naming a sibling .bin file is resolved to
// that file before detection runs.
package image

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopsx/gopsx/curated"
)

// Fatal-startup error patterns.
const (
	ErrOpenFailed   = "image: failed to open %s"
	ErrNoDataTrack  = "image: cue sheet names no BINARY data track"
	ErrSectorOOB    = "image: sector %d out of range"
)

const (
	sectorUser   = 2048
	sectorRaw    = 2352
	rawHeader    = 16 // sync(12) + address(3) + mode(1)
	modeByteOffset = 15
)

// rawSync is the 12-byte sync pattern a raw (2352-byte) sector begins
// with: 0x00 followed by ten 0xFF bytes and a trailing 0x00.
var rawSync = append([]byte{0x00}, append(bytes.Repeat([]byte{0xff}, 10), 0x00)...)

// Image is a sector-addressed read-only disc image.
type Image struct {
	r          io.ReaderAt
	sectorSize int
	dataOffset int // offset of the 2048 user-data bytes within a sector
}

// Open opens path, resolving a .cue sheet to its first named BINARY
// track and auto-detecting the sibling file's sector format.
func Open(path string) (*Image, error) {
	target := path
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		binPath, err := resolveCue(path)
		if err != nil {
			return nil, err
		}
		target = binPath
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, curated.Errorf(ErrOpenFailed, target)
	}

	return detect(f)
}

// resolveCue reads the cue sheet at path and returns the path to the
// sibling binary named by its first `FILE "<name>" BINARY` line.
func resolveCue(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", curated.Errorf(ErrOpenFailed, path)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToUpper(line), "FILE ") {
			continue
		}
		if !strings.Contains(strings.ToUpper(line), "BINARY") {
			continue
		}
		name, ok := quotedField(line)
		if !ok {
			continue
		}
		return filepath.Join(filepath.Dir(path), name), nil
	}
	return "", curated.Errorf(ErrNoDataTrack)
}

func quotedField(s string) (string, bool) {
	first := strings.IndexByte(s, '"')
	if first < 0 {
		return "", false
	}
	rest := s[first+1:]
	second := strings.IndexByte(rest, '"')
	if second < 0 {
		return "", false
	}
	return rest[:second], true
}

// detect inspects r's first sector to tell a 2048-byte ISO apart from
// a 2352-byte raw image: a raw sector opens with the sync pattern and
// carries its mode byte at offset 15 (mode 1 or mode 2 form 1, both of
// which place 2048 user-data bytes at a fixed offset into the sector).
func detect(r io.ReaderAt) (*Image, error) {
	probe := make([]byte, rawHeader+1)
	if _, err := r.ReadAt(probe, 0); err != nil && err != io.EOF {
		return &Image{r: r, sectorSize: sectorUser, dataOffset: 0}, nil
	}

	if len(probe) >= rawHeader+1 && bytes.Equal(probe[:12], rawSync) {
		switch probe[modeByteOffset] {
		case 1:
			return &Image{r: r, sectorSize: sectorRaw, dataOffset: rawHeader}, nil
		case 2:
			return &Image{r: r, sectorSize: sectorRaw, dataOffset: rawHeader + 8}, nil
		}
	}

	return &Image{r: r, sectorSize: sectorUser, dataOffset: 0}, nil
}

// ReadSector returns the 2048 user-data bytes of the sector at lba.
func (img *Image) ReadSector(lba uint32) ([2048]byte, error) {
	var out [2048]byte
	off := int64(lba)*int64(img.sectorSize) + int64(img.dataOffset)
	n, err := img.r.ReadAt(out[:], off)
	if err != nil && err != io.EOF {
		return out, curated.Errorf(ErrSectorOOB, lba)
	}
	if n < len(out) {
		return out, curated.Errorf(ErrSectorOOB, lba)
	}
	return out, nil
}
