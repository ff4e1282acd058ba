// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

// Memory-mapped register addresses (§4.5).
const (
	AddrKBSR uint16 = 0xFE00
	AddrKBDR uint16 = 0xFE02
	AddrDSR  uint16 = 0xFE04
	AddrDDR  uint16 = 0xFE06
	AddrMCR  uint16 = 0xFFFE
)

// Memory is the dense 2^16-word address space (§3), array-backed as
// cpu/memory.go's FlatMemory is for the 6502 teacher, generalized here to
// 16-bit words instead of bytes and re-keyed to the LC-3 memory-mapped
// registers instead of 6502's page-addressed bus.
type Memory struct {
	words   [1 << 16]uint16
	console *Console
	halt    bool // cleared MCR bit 15
}

// NewMemory creates a zeroed memory array wired to the given console for
// memory-mapped device I/O.
func NewMemory(console *Console) *Memory {
	return &Memory{console: console}
}

// Reset clears all memory. Registers are reset by Machine.Reset, per §3's
// reset contract covering "all memory and registers".
func (m *Memory) Reset() {
	for i := range m.words {
		m.words[i] = 0
	}
	m.halt = false
}

// Load reads one word from memory, honoring KBSR/KBDR/DSR (§4.5).
func (m *Memory) Load(addr uint16) uint16 {
	switch addr {
	case AddrKBSR:
		if m.console != nil && m.console.Poll() {
			return 0x8000
		}
		return 0
	case AddrKBDR:
		if m.console != nil {
			b, err := m.console.ReadChar()
			if err == nil {
				return uint16(b)
			}
		}
		return 0
	case AddrDSR:
		return 0x8000 // display always ready
	case AddrMCR:
		if m.halt {
			return 0
		}
		return 0x8000
	default:
		return m.words[addr]
	}
}

// Store writes one word to memory, honoring DDR/MCR (§4.5).
func (m *Memory) Store(addr uint16, value uint16) {
	switch addr {
	case AddrDDR:
		if m.console != nil {
			m.console.WriteChar(byte(value))
		}
	case AddrMCR:
		if value&0x8000 == 0 {
			m.halt = true
		}
	default:
		m.words[addr] = value
	}
}

// Halted reports whether a store cleared MCR bit 15.
func (m *Memory) Halted() bool {
	return m.halt
}

// LoadRaw reads straight from the backing array, bypassing device-register
// semantics; used by the loader and by debugger memory inspection which
// must be able to display the raw contents of xFE00/xFE02 without
// triggering a blocking keyboard read.
func (m *Memory) LoadRaw(addr uint16) uint16 {
	return m.words[addr]
}

// StoreRaw writes straight to the backing array, used by the loader and by
// the debugger's `move` command (§4.7) which writes memory directly with
// no CC update and no device-register side effects for ordinary addresses.
func (m *Memory) StoreRaw(addr uint16, value uint16) {
	m.words[addr] = value
}
