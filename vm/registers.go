// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

// Registers is the LC-3 register file (§3): eight general-purpose
// registers, the program counter, and three condition-code bits of which
// exactly one is set after any CC-setting instruction. Shape follows
// cpu/register.go's flat, directly-addressable Registers struct.
type Registers struct {
	R  [8]uint16
	PC uint16
	N  bool
	Z  bool
	P  bool
}

// SetCC sets the condition codes from a result word, per §4.5: N if the
// signed value is negative, Z if zero, P otherwise. Exactly one is set.
func (r *Registers) SetCC(result uint16) {
	v := int16(result)
	r.N = v < 0
	r.Z = v == 0
	r.P = v > 0
}

// Init resets the register file to its post-reset state: all zero.
func (r *Registers) Init() {
	*r = Registers{}
}
