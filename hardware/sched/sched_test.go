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

package sched_test

import (
	"math"
	"testing"

	"github.com/gopsx/gopsx/hardware/sched"
	"github.com/gopsx/gopsx/test"
)

func TestNextDeadlineEmpty(t *testing.T) {
	s := sched.NewScheduler()
	test.ExpectEquality(t, s.NextDeadline(), uint64(math.MaxUint64))
}

func TestScheduleAndDispatch(t *testing.T) {
	s := sched.NewScheduler()

	fired := false
	err := s.Schedule("vblank", 100, func() { fired = true })
	test.ExpectSuccess(t, err)

	test.ExpectEquality(t, s.NextDeadline(), uint64(100))

	s.Dispatch(50)
	test.ExpectEquality(t, fired, false)

	s.Dispatch(100)
	test.ExpectEquality(t, fired, true)

	// slot is now inactive; it won't fire again without rescheduling
	fired = false
	s.Dispatch(200)
	test.ExpectEquality(t, fired, false)
}

func TestRescheduleFromWithinCallback(t *testing.T) {
	s := sched.NewScheduler()

	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			_ = s.Schedule("timer", uint64(100*(count+1)), tick)
		}
	}
	_ = s.Schedule("timer", 100, tick)

	s.Dispatch(100)
	test.ExpectEquality(t, count, 1)
	test.ExpectEquality(t, s.NextDeadline(), uint64(200))

	s.Dispatch(200)
	test.ExpectEquality(t, count, 2)

	s.Dispatch(300)
	test.ExpectEquality(t, count, 3)
}

func TestRemove(t *testing.T) {
	s := sched.NewScheduler()

	fired := false
	_ = s.Schedule("timer", 10, func() { fired = true })
	s.Remove("timer")

	s.Dispatch(10)
	test.ExpectEquality(t, fired, false)
	test.ExpectEquality(t, s.NextDeadline(), uint64(math.MaxUint64))
}

func TestSlotPoolExhaustion(t *testing.T) {
	s := sched.NewScheduler()

	for i := 0; i < sched.MaxSlots; i++ {
		err := s.Schedule(string(rune('a'+i)), uint64(i), func() {})
		test.ExpectSuccess(t, err)
	}

	err := s.Schedule("overflow", 0, func() {})
	test.ExpectFailure(t, err)
}
