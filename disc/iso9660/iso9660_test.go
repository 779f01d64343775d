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

package iso9660_test

import (
	"encoding/binary"
	"testing"

	"github.com/gopsx/gopsx/disc/iso9660"
	"github.com/gopsx/gopsx/test"
)

// memDisc is a fixed-size in-memory stand-in for disc/image.Image.
type memDisc struct {
	sectors map[uint32][2048]byte
}

func newMemDisc() *memDisc {
	return &memDisc{sectors: make(map[uint32][2048]byte)}
}

func (d *memDisc) ReadSector(lba uint32) ([2048]byte, error) {
	return d.sectors[lba], nil
}

func (d *memDisc) set(lba uint32, b []byte) {
	var s [2048]byte
	copy(s[:], b)
	d.sectors[lba] = s
}

func dirRecord(name string, extent, size uint32, isDir bool) []byte {
	nameLen := len(name)
	recLen := 33 + nameLen
	if recLen%2 != 0 {
		recLen++
	}
	r := make([]byte, recLen)
	r[0] = byte(recLen)
	binary.LittleEndian.PutUint32(r[2:], extent)
	binary.LittleEndian.PutUint32(r[10:], size)
	if isDir {
		r[25] = 0x02
	}
	r[32] = byte(nameLen)
	copy(r[33:], name)
	return r
}

func buildDisc() *memDisc {
	d := newMemDisc()

	const rootLBA = 20
	const rootSize = 2048
	root := append(dirRecord("\x00", rootLBA, rootSize, true), dirRecord("\x01", rootLBA, rootSize, true)...)
	root = append(root, dirRecord("SYSTEM.CNF;1", 30, 64, false)...)
	root = append(root, dirRecord("MAIN.EXE;1", 31, 2048, false)...)
	d.set(rootLBA, root)

	pvd := make([]byte, 2048)
	pvd[0] = 0x01
	copy(pvd[1:], "CD001")
	binary.LittleEndian.PutUint32(pvd[156+2:], rootLBA)
	binary.LittleEndian.PutUint32(pvd[156+10:], rootSize)
	d.set(16, pvd)

	cnf := make([]byte, 2048)
	copy(cnf, "BOOT = cdrom:\\MAIN.EXE;1\r\nTCB = 4\r\n")
	d.set(30, cnf)

	exe := make([]byte, 2048)
	exe[0] = 0x7a
	d.set(31, exe)

	return d
}

func TestOpenParsesRootDirectory(t *testing.T) {
	v, err := iso9660.Open(buildDisc())
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, v.RootExtentLBA, uint32(20))

	e, err := v.Find("main.exe")
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, e.ExtentLBA, uint32(31))
}

func TestOpenRejectsMissingSignature(t *testing.T) {
	d := newMemDisc()
	_, err := iso9660.Open(d)
	test.ExpectFailure(t, err)
}

func TestFindMissingFileFails(t *testing.T) {
	v, err := iso9660.Open(buildDisc())
	test.ExpectSuccess(t, err)
	_, err = v.Find("nope.exe")
	test.ExpectFailure(t, err)
}

func TestReadFileReturnsExtentBytes(t *testing.T) {
	d := buildDisc()
	v, err := iso9660.Open(d)
	test.ExpectSuccess(t, err)

	e, err := v.Find("MAIN.EXE")
	test.ExpectSuccess(t, err)

	data, err := iso9660.ReadFile(d, e)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, len(data), 2048)
	test.ExpectEquality(t, data[0], byte(0x7a))
}

func TestBootPathStripsDeviceAndVersion(t *testing.T) {
	path, err := iso9660.BootPath([]byte("BOOT = cdrom:\\MAIN.EXE;1\r\n"))
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, path, "MAIN.EXE")
}

func TestBootPathMissingLineFails(t *testing.T) {
	_, err := iso9660.BootPath([]byte("TCB = 4\r\n"))
	test.ExpectFailure(t, err)
}
