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

// Package test collects small helpers shared by every package's _test.go
// files so that assertions read the same way throughout the module.
package test

import (
	"fmt"
	"math"
	"testing"
)

// failed is true for a false bool or a non-nil error value.
func failed(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return !t
	case error:
		return t != nil
	case nil:
		return false
	}
	return false
}

// ExpectFailure requires that v represents a failure: a false bool or a
// non-nil error.
func ExpectFailure(t *testing.T, v interface{}) {
	t.Helper()
	if !failed(v) {
		t.Fatalf("expected failure, got success: %v", v)
	}
}

// ExpectSuccess requires that v represents success: a true bool, a nil
// error, or a literal nil.
func ExpectSuccess(t *testing.T, v interface{}) {
	t.Helper()
	if failed(v) {
		t.Fatalf("expected success, got failure: %v", v)
	}
}

// ExpectEquality requires that a and b compare equal with reflect-free
// fmt.Sprintf comparison, which is sufficient for the plain value types used
// throughout this module's tests.
func ExpectEquality(t *testing.T, a, b interface{}) {
	t.Helper()
	Equate(t, a, b)
}

// ExpectInequality requires that a and b are not equal.
func ExpectInequality(t *testing.T, a, b interface{}) {
	t.Helper()
	if fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b) {
		t.Fatalf("expected inequality: %v == %v", a, b)
	}
}

// Equate requires that a and b are equal.
func Equate(t *testing.T, a, b interface{}) {
	t.Helper()
	sa := fmt.Sprintf("%v", a)
	sb := fmt.Sprintf("%v", b)
	if sa != sb {
		t.Fatalf("expected equality: %v != %v", a, b)
	}
}

// ExpectApproximate requires that a and b are within tolerance of one
// another, expressed as a fraction of b (e.g. 0.1 permits 10% error).
func ExpectApproximate(t *testing.T, a, b float64, tolerance float64) {
	t.Helper()
	d := math.Abs(a - b)
	limit := math.Abs(b * tolerance)
	if d > limit {
		t.Fatalf("expected %v to be within %v%% of %v", a, tolerance*100, b)
	}
}
