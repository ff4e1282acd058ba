// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

// SignExtend sign-extends a value held in the low bitcount bits of a word,
// adapted from lassandro-golc3's pkg/encoding helper of the same name.
func SignExtend(value uint16, bitcount uint) uint16 {
	if (value>>(bitcount-1))&1 != 0 {
		return value | (^uint16(0) << bitcount)
	}
	return value
}

// ToSigned16 reinterprets a word as a signed two's-complement 16-bit value.
func ToSigned16(w uint16) int16 {
	return int16(w)
}
