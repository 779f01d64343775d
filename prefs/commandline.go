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
	"fmt"
	"sort"
	"strings"
)

// commandLineStack holds one normalised "key::value; key::value" string per
// nested command line group, most recent group last. A launcher pushes a
// group of preference overrides before starting a disc image and pops it
// again once that instance has finished with them.
var commandLineStack []string

func splitCommandLineEntry(s string) (string, string, bool) {
	idx := strings.Index(s, "::")
	if idx < 0 {
		return "", "", false
	}
	k := strings.TrimSpace(s[:idx])
	v := strings.TrimSpace(s[idx+2:])
	if k == "" {
		return "", "", false
	}
	return k, v, true
}

// PushCommandLineStack parses s as a ";"-separated list of "key::value"
// pairs and pushes the normalised result onto the command line stack.
// Entries that don't contain "::" (or have an empty key) are dropped; the
// surviving entries are sorted alphabetically before being joined back
// together.
func PushCommandLineStack(s string) {
	parts := strings.Split(s, ";")
	valid := make([]string, 0, len(parts))

	for _, p := range parts {
		k, v, ok := splitCommandLineEntry(strings.TrimSpace(p))
		if !ok {
			continue
		}
		valid = append(valid, fmt.Sprintf("%s::%s", k, v))
	}

	sort.Strings(valid)
	commandLineStack = append(commandLineStack, strings.Join(valid, "; "))
}

// PopCommandLineStack removes and returns the most recently pushed command
// line group. It returns the empty string if the stack is empty.
func PopCommandLineStack() string {
	if len(commandLineStack) == 0 {
		return ""
	}
	top := len(commandLineStack) - 1
	s := commandLineStack[top]
	commandLineStack = commandLineStack[:top]
	return s
}

// GetCommandLinePref looks for key in the command line group currently on
// top of the stack, without popping it. The second return value is only
// meaningful when the first is true.
func GetCommandLinePref(key string) (bool, string) {
	if len(commandLineStack) == 0 {
		return false, ""
	}

	top := commandLineStack[len(commandLineStack)-1]
	if top == "" {
		return false, ""
	}

	for _, e := range strings.Split(top, "; ") {
		k, v, ok := splitCommandLineEntry(e)
		if ok && k == key {
			return true, v
		}
	}

	return false, ""
}
