// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "io"

// Image is the product of assembly (§3): an origin address, a contiguous
// sequence of words, a symbol table, and the set of source-declared
// breakpoints. The SourceMap travels alongside it but is not part of the
// object format.
type Image struct {
	Origin      uint16
	Words       []uint16
	Symbols     map[string]uint16
	Breakpoints []uint16
}

// ReadFrom reads the LC-3 object format (§6): the origin word, big-endian,
// followed by the big-endian program words. Mirrors the teacher assembly
// package's Assembly.ReadFrom/WriteTo convention.
func (img *Image) ReadFrom(r io.Reader) (int64, error) {
	var n int64
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return n, err
	}
	n += 2
	img.Origin = uint16(hdr[0])<<8 | uint16(hdr[1])

	img.Words = img.Words[:0]
	for {
		var buf [2]byte
		m, err := io.ReadFull(r, buf[:])
		n += int64(m)
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		img.Words = append(img.Words, uint16(buf[0])<<8|uint16(buf[1]))
	}
	return n, nil
}

// WriteTo writes the LC-3 object format (§6).
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	var n int64
	buf := make([]byte, 0, 2+2*len(img.Words))
	buf = append(buf, byte(img.Origin>>8), byte(img.Origin))
	for _, word := range img.Words {
		buf = append(buf, byte(word>>8), byte(word))
	}
	m, err := w.Write(buf)
	n += int64(m)
	return n, err
}
