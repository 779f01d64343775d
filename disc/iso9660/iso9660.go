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

// Package iso9660 is the thin collaborator spec.md §6 describes: just
// enough of ISO-9660 to find the primary volume descriptor, walk the
// root directory's flat file list, and pull the boot path out of
// SYSTEM.CNF. No directory-tree cache, no Joliet/Rock Ridge extensions,
// no nested subdirectories beyond what locating a single boot
// executable requires.
package iso9660

import (
	"encoding/binary"
	"strings"

	"github.com/gopsx/gopsx/curated"
)

// Fatal-startup error patterns.
const (
	ErrNotISO9660   = "iso9660: primary volume descriptor signature not found"
	ErrFileNotFound = "iso9660: file %q not found in root directory"
	ErrNoBootLine   = "iso9660: SYSTEM.CNF has no BOOT line"
)

const (
	pvdLBA            = 16
	pvdTypeOffset     = 0
	pvdIDOffset       = 1
	rootDirRecOffset  = 156
	rootExtentOffset  = rootDirRecOffset + 2
	rootSizeOffset    = rootDirRecOffset + 10
	sectorSize        = 2048
)

// SectorReader is the disc-image surface this package needs: anything
// that can deliver a sector's 2048 user-data bytes by LBA.
type SectorReader interface {
	ReadSector(lba uint32) ([2048]byte, error)
}

// Entry is one file found in the root directory.
type Entry struct {
	Name      string
	ExtentLBA uint32
	Size      uint32
}

// Volume is a parsed primary volume descriptor plus its root directory
// listing.
type Volume struct {
	RootExtentLBA uint32
	RootSize      uint32
	entries       []Entry
}

// Open reads the primary volume descriptor at LBA 16 and the root
// directory it names.
func Open(r SectorReader) (*Volume, error) {
	sector, err := r.ReadSector(pvdLBA)
	if err != nil {
		return nil, err
	}
	if sector[pvdTypeOffset] != 0x01 || string(sector[pvdIDOffset:pvdIDOffset+5]) != "CD001" {
		return nil, curated.Errorf(ErrNotISO9660)
	}

	v := &Volume{
		RootExtentLBA: binary.LittleEndian.Uint32(sector[rootExtentOffset:]),
		RootSize:      binary.LittleEndian.Uint32(sector[rootSizeOffset:]),
	}

	entries, err := readDirectory(r, v.RootExtentLBA, v.RootSize)
	if err != nil {
		return nil, err
	}
	v.entries = entries
	return v, nil
}

// readDirectory walks the variable-length directory-record stream
// occupying size bytes starting at extentLBA, one sector at a time;
// directory records never span a sector boundary in ISO-9660, so a
// zero length-byte means "skip to the next sector".
func readDirectory(r SectorReader, extentLBA uint32, size uint32) ([]Entry, error) {
	var entries []Entry
	sectors := (size + sectorSize - 1) / sectorSize

	for s := uint32(0); s < sectors; s++ {
		sector, err := r.ReadSector(extentLBA + s)
		if err != nil {
			return nil, err
		}

		pos := 0
		for pos < sectorSize {
			recLen := int(sector[pos])
			if recLen == 0 {
				break
			}

			nameLen := int(sector[pos+32])
			nameStart := pos + 33
			flags := sector[pos+25]
			isDir := flags&0x02 != 0

			name := normalizeName(string(sector[nameStart : nameStart+nameLen]))
			if name != "" && name != "." && name != ".." && !isDir {
				entries = append(entries, Entry{
					Name:      name,
					ExtentLBA: binary.LittleEndian.Uint32(sector[pos+2:]),
					Size:      binary.LittleEndian.Uint32(sector[pos+10:]),
				})
			}

			pos += recLen
		}
	}
	return entries, nil
}

// normalizeName upper-cases a raw ISO-9660 identifier and strips the
// trailing ";<version>" and a lone trailing dot, per spec.md §6's
// file-matching rule.
func normalizeName(raw string) string {
	name := strings.ToUpper(raw)
	if i := strings.IndexByte(name, ';'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".")
	return name
}

// Find looks up name (case-insensitively, ignoring the ";1" version
// suffix) in the root directory listing.
func (v *Volume) Find(name string) (Entry, error) {
	target := normalizeName(name)
	for _, e := range v.entries {
		if e.Name == target {
			return e, nil
		}
	}
	return Entry{}, curated.Errorf(ErrFileNotFound, name)
}

// ReadFile reads entry's full extent into memory.
func ReadFile(r SectorReader, e Entry) ([]byte, error) {
	out := make([]byte, 0, e.Size)
	sectors := (e.Size + sectorSize - 1) / sectorSize
	for s := uint32(0); s < sectors; s++ {
		sector, err := r.ReadSector(e.ExtentLBA + s)
		if err != nil {
			return nil, err
		}
		out = append(out, sector[:]...)
	}
	if uint32(len(out)) > e.Size {
		out = out[:e.Size]
	}
	return out, nil
}

// BootPath parses a SYSTEM.CNF file's `BOOT = <device>:[/\]<path>;<ver>`
// line and returns the normalised (forward-slash, no device prefix, no
// leading slash) boot executable path.
func BootPath(systemCNF []byte) (string, error) {
	for _, line := range strings.Split(string(systemCNF), "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		if !strings.HasPrefix(upper, "BOOT") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		value := strings.TrimSpace(line[eq+1:])

		if colon := strings.IndexByte(value, ':'); colon >= 0 {
			value = value[colon+1:]
		}
		value = strings.ReplaceAll(value, "\\", "/")
		value = strings.TrimPrefix(value, "/")
		if semi := strings.IndexByte(value, ';'); semi >= 0 {
			value = value[:semi]
		}
		return value, nil
	}
	return "", curated.Errorf(ErrNoBootLine)
}
