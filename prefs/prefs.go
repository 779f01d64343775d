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

package prefs

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// WarningBoilerPlate is written as the first line of every preferences
// file, above the "key :: value" entries.
const WarningBoilerPlate = "# this file is generated by gopsx - editing it by hand is not recommended"

const separator = " :: "

// Disk is a key/value preferences file. Values are registered with Add and
// kept live in the caller's chosen entry type; Save and Load move the
// registered values to and from disk.
type Disk struct {
	path string

	// raw holds whatever was last read from disk, keyed the same way the
	// file is keyed. It is used so that Save never discards keys this
	// instance hasn't registered, letting several Disk instances opened on
	// the same file (each registering a different subset of keys) coexist.
	raw map[string]string

	registered map[string]entry
	order      []string
}

// NewDisk prepares a Disk backed by the file at path. It is not an error
// for the file not to exist yet; it is simply treated as empty until Save
// is called.
func NewDisk(path string) (*Disk, error) {
	d := &Disk{
		path:       path,
		raw:        make(map[string]string),
		registered: make(map[string]entry),
	}

	if err := d.readRaw(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Disk) readRaw() error {
	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prefs: cannot open %s: %w", d.path, err)
	}
	defer f.Close()

	raw := make(map[string]string)

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue
		}
		if line == "" {
			continue
		}
		k, v, ok := splitEntry(line)
		if !ok {
			continue
		}
		raw[k] = v
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("prefs: cannot read %s: %w", d.path, err)
	}

	d.raw = raw

	return nil
}

func splitEntry(line string) (string, string, bool) {
	idx := strings.Index(line, separator)
	if idx < 0 {
		return "", "", false
	}
	k := strings.TrimSpace(line[:idx])
	v := strings.TrimSpace(line[idx+len(separator):])
	if k == "" {
		return "", "", false
	}
	return k, v, true
}

// Add registers v under key. Future calls to Save will include v's current
// value; future calls to Load will call v.Set() with whatever is on disk
// for key, if anything.
func (d *Disk) Add(key string, v entry) error {
	if _, ok := d.registered[key]; ok {
		return fmt.Errorf("prefs: %s already registered", key)
	}
	d.registered[key] = v
	d.order = append(d.order, key)
	return nil
}

// Save writes every registered value to disk, along with any keys read
// from disk that this instance hasn't registered.
func (d *Disk) Save() error {
	merged := make(map[string]string, len(d.raw)+len(d.registered))
	for k, v := range d.raw {
		merged[k] = v
	}
	for k, v := range d.registered {
		merged[k] = v.String()
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(WarningBoilerPlate)
	b.WriteString("\n")
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(separator)
		b.WriteString(merged[k])
		b.WriteString("\n")
	}

	if err := os.WriteFile(d.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("prefs: cannot write %s: %w", d.path, err)
	}

	d.raw = merged

	return nil
}

// Load rereads the preferences file and applies every registered value's
// on-disk entry, if any. Keys that are registered but absent from disk are
// left unchanged.
func (d *Disk) Load() error {
	if err := d.readRaw(); err != nil {
		return err
	}

	for k, v := range d.registered {
		s, ok := d.raw[k]
		if !ok {
			continue
		}
		if err := v.Set(s); err != nil {
			return fmt.Errorf("prefs: cannot set %s: %w", k, err)
		}
	}

	return nil
}
