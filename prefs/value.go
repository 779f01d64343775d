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

// Package prefs implements a small on-disk key/value preference store.
// cmd/gopsx opens and loads a gopsx.prefs file at startup but registers no
// values with it. It is deliberately tiny: one file, "key :: value"
// lines, no sections, no types beyond what this module needs.
package prefs

import (
	"fmt"
	"strconv"
)

// Value is the payload type exchanged with a registered preference: the
// raw string read back from disk, or whatever a caller passes to Set.
type Value = interface{}

// entry is what Disk.Add requires: something that can absorb a Value and
// report its own current value back as a string for saving.
type entry interface {
	Set(Value) error
	String() string
}

// Bool is a boolean preference value.
type Bool struct {
	v bool
}

// Set accepts a bool or a string. A string that strconv.ParseBool cannot
// parse sets the value to false without an error.
func (b *Bool) Set(v Value) error {
	switch t := v.(type) {
	case bool:
		b.v = t
		return nil
	case string:
		parsed, err := strconv.ParseBool(t)
		b.v = err == nil && parsed
		return nil
	}
	return fmt.Errorf("prefs: cannot set bool value from %T", v)
}

// String implements the entry interface.
func (b *Bool) String() string {
	return strconv.FormatBool(b.v)
}

// Get returns the current value.
func (b *Bool) Get() bool {
	return b.v
}

// String is a string preference value, with an optional maximum length.
type String struct {
	v      string
	maxLen int
}

// Set accepts a string, cropping it to the configured maximum length, if
// any.
func (s *String) Set(v Value) error {
	t, ok := v.(string)
	if !ok {
		return fmt.Errorf("prefs: cannot set string value from %T", v)
	}
	s.v = s.crop(t)
	return nil
}

func (s *String) crop(v string) string {
	if s.maxLen > 0 && len(v) > s.maxLen {
		return v[:s.maxLen]
	}
	return v
}

// SetMaxLen sets the maximum length for the string, cropping the current
// value if necessary. A value of zero disables the limit but does not
// restore any content already cropped away.
func (s *String) SetMaxLen(n int) {
	s.maxLen = n
	s.v = s.crop(s.v)
}

// String implements the entry interface.
func (s *String) String() string {
	return s.v
}

// Float is a floating-point preference value.
type Float struct {
	v float64
}

// Set accepts a float64 or a parseable numeric string.
func (f *Float) Set(v Value) error {
	switch t := v.(type) {
	case float64:
		f.v = t
		return nil
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return fmt.Errorf("prefs: cannot set float value: %w", err)
		}
		f.v = parsed
		return nil
	}
	return fmt.Errorf("prefs: cannot set float value from %T", v)
}

// String implements the entry interface.
func (f *Float) String() string {
	return strconv.FormatFloat(f.v, 'g', -1, 64)
}

// Get returns the current value.
func (f *Float) Get() float64 {
	return f.v
}

// Int is an integer preference value.
type Int struct {
	v int
}

// Set accepts an int or a parseable integer string. A float64 value
// (whole or otherwise) is rejected: preference files distinguish Int from
// Float by the call site, not by value inspection.
func (i *Int) Set(v Value) error {
	switch t := v.(type) {
	case int:
		i.v = t
		return nil
	case string:
		parsed, err := strconv.Atoi(t)
		if err != nil {
			return fmt.Errorf("prefs: cannot set int value: %w", err)
		}
		i.v = parsed
		return nil
	}
	return fmt.Errorf("prefs: cannot set int value from %T", v)
}

// String implements the entry interface.
func (i *Int) String() string {
	return strconv.Itoa(i.v)
}

// Get returns the current value.
func (i *Int) Get() int {
	return i.v
}

// Generic wraps caller-supplied set/get functions so that arbitrary state
// can be attached to a Disk without a dedicated Value type.
type Generic struct {
	set func(Value) error
	get func() Value
}

// NewGeneric creates a Generic preference value from a setter and getter
// pair. The setter receives the raw value read from disk (or passed to
// Set); the getter is called whenever the current value needs to be
// rendered for saving.
func NewGeneric(set func(Value) error, get func() Value) *Generic {
	return &Generic{set: set, get: get}
}

// Set implements the entry interface.
func (g *Generic) Set(v Value) error {
	return g.set(v)
}

// String implements the entry interface.
func (g *Generic) String() string {
	v := g.get()
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
