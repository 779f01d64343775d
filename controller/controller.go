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

// Package controller is the thin digital-pad register stub spec.md §1
// names as an out-of-scope collaborator: it holds the guest-visible
// button state and answers the SIO/pad register reads the BIOS and
// games poll, but performs no real serial protocol timing, no
// multitap, and no analog-stick/rumble modelling.
package controller

// Button identifies one digital-pad input, numbered to match the
// guest's active-low button-state halfword (the bit a game's pad read
// expects to see clear when the button is held).
type Button int

const (
	Select Button = iota
	L3
	R3
	Start
	Up
	Right
	Down
	Left
	L2
	R2
	L1
	R1
	Triangle
	Circle
	Cross
	Square
)

// idle is the button-state halfword with every bit set: the guest
// convention for "nothing held".
const idle = 0xffff

// Pad is a single digital pad's button-state register.
type Pad struct {
	state uint16
}

// NewPad returns a Pad with no buttons held.
func NewPad() *Pad {
	return &Pad{state: idle}
}

// SetButton records b's held/released state, clearing its bit while
// held per the guest's active-low convention.
func (p *Pad) SetButton(b Button, held bool) {
	mask := uint16(1) << uint(b)
	if held {
		p.state &^= mask
	} else {
		p.state |= mask
	}
}

// State returns the guest-visible active-low button halfword.
func (p *Pad) State() uint16 {
	return p.state
}

// RegisterFirst and RegisterLast bound the SIO0
// data/status aperture this stub answers: spec.md §6 reserves
// 0x1f80_1040-0x1f80_104f for the pad/memcard serial port within the
// wider hardware-register range, of which this stub only models the
// button-state halfword games actually poll through JOY_RX_DATA.
const (
	RegisterFirst = 0x1f80_1040
	RegisterLast  = 0x1f80_104f

	joyRxData = 0x1f80_1040
)

// Controller answers the pad register aperture on behalf of Pad 1; a
// second pad (multitap) is out of scope.
type Controller struct {
	pad1 *Pad
}

// New returns a Controller wrapping pad1 so its button state is
// visible at the guest's JOY_RX_DATA address.
func New(pad1 *Pad) *Controller {
	return &Controller{pad1: pad1}
}

// ReadRegister implements memory.RegisterHandler. Only JOY_RX_DATA is
// modelled; any other address in the aperture reads as all-ones, the
// same "nothing asserted" value real idle serial hardware returns.
func (c *Controller) ReadRegister(address uint32, width int) (uint32, error) {
	if address == joyRxData {
		return uint32(c.pad1.State()), nil
	}
	return 0xffff_ffff, nil
}

// WriteRegister implements memory.RegisterHandler. The real SIO0
// command/mode/baud registers this stub doesn't model are writable
// no-ops: games that probe them for a response see none, matching the
// "pad not present" behaviour of an unplugged port rather than
// crashing on an unmapped-address fault.
func (c *Controller) WriteRegister(address uint32, width int, value uint32) error {
	return nil
}
