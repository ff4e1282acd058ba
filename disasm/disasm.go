// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements an LC-3 instruction set disassembler,
// adapted from the teacher's 6502 disassembler: a switch over the 4-bit
// opcode plus a single Disassemble entry point that renders one
// instruction and reports the address of the next one.
package disasm

import (
	"fmt"

	"github.com/beevik/lace/vm"
)

var regNames = [8]string{"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7"}

// signExtend sign-extends the low `bits` bits of v to a full int32.
func signExtend(v uint16, bits uint) int32 {
	shift := 16 - bits
	return int32(int16(v<<shift)) >> shift
}

// Disassemble renders the instruction word at addr in mem and returns the
// address of the instruction that follows it. Unlike the 6502 original
// (variable-length instructions, an addressing-mode format table), every
// LC-3 instruction is exactly one word, so next is always addr+1.
func Disassemble(mem *vm.Memory, addr uint16) (line string, next uint16) {
	ir := mem.LoadRaw(addr)
	next = addr + 1

	op := ir >> 12
	dr := (ir >> 9) & 0x7
	sr1 := (ir >> 6) & 0x7
	sr2 := ir & 0x7

	switch op {
	case 0x1: // ADD
		if ir&0x20 != 0 {
			imm := signExtend(ir&0x1F, 5)
			line = fmt.Sprintf("ADD   %s, %s, #%d", regNames[dr], regNames[sr1], imm)
		} else {
			line = fmt.Sprintf("ADD   %s, %s, %s", regNames[dr], regNames[sr1], regNames[sr2])
		}
	case 0x5: // AND
		if ir&0x20 != 0 {
			imm := signExtend(ir&0x1F, 5)
			line = fmt.Sprintf("AND   %s, %s, #%d", regNames[dr], regNames[sr1], imm)
		} else {
			line = fmt.Sprintf("AND   %s, %s, %s", regNames[dr], regNames[sr1], regNames[sr2])
		}
	case 0x9: // NOT
		line = fmt.Sprintf("NOT   %s, %s", regNames[dr], regNames[sr1])
	case 0x0: // BR
		n, z, p := ir&0x800 != 0, ir&0x400 != 0, ir&0x200 != 0
		mnemonic := "BR"
		switch {
		case n && z && p:
			mnemonic = "BRnzp"
		case n && z:
			mnemonic = "BRnz"
		case n && p:
			mnemonic = "BRnp"
		case z && p:
			mnemonic = "BRzp"
		case n:
			mnemonic = "BRn"
		case z:
			mnemonic = "BRz"
		case p:
			mnemonic = "BRp"
		}
		offset := signExtend(ir&0x1FF, 9)
		target := uint16(int32(next) + offset)
		line = fmt.Sprintf("%-5s  x%04X", mnemonic, target)
	case 0xC: // JMP / RET
		if sr1 == 7 {
			line = "RET"
		} else {
			line = fmt.Sprintf("JMP   %s", regNames[sr1])
		}
	case 0x4: // JSR / JSRR
		if ir&0x800 != 0 {
			offset := signExtend(ir&0x7FF, 11)
			target := uint16(int32(next) + offset)
			line = fmt.Sprintf("JSR   x%04X", target)
		} else {
			line = fmt.Sprintf("JSRR  %s", regNames[sr1])
		}
	case 0x2: // LD
		offset := signExtend(ir&0x1FF, 9)
		target := uint16(int32(next) + offset)
		line = fmt.Sprintf("LD    %s, x%04X", regNames[dr], target)
	case 0xA: // LDI
		offset := signExtend(ir&0x1FF, 9)
		target := uint16(int32(next) + offset)
		line = fmt.Sprintf("LDI   %s, x%04X", regNames[dr], target)
	case 0x6: // LDR
		offset := signExtend(ir&0x3F, 6)
		line = fmt.Sprintf("LDR   %s, %s, #%d", regNames[dr], regNames[sr1], offset)
	case 0xE: // LEA
		offset := signExtend(ir&0x1FF, 9)
		target := uint16(int32(next) + offset)
		line = fmt.Sprintf("LEA   %s, x%04X", regNames[dr], target)
	case 0x3: // ST
		offset := signExtend(ir&0x1FF, 9)
		target := uint16(int32(next) + offset)
		line = fmt.Sprintf("ST    %s, x%04X", regNames[dr], target)
	case 0xB: // STI
		offset := signExtend(ir&0x1FF, 9)
		target := uint16(int32(next) + offset)
		line = fmt.Sprintf("STI   %s, x%04X", regNames[dr], target)
	case 0x7: // STR
		offset := signExtend(ir&0x3F, 6)
		line = fmt.Sprintf("STR   %s, %s, #%d", regNames[dr], regNames[sr1], offset)
	case 0xF: // TRAP
		line = fmt.Sprintf("TRAP  x%02X", ir&0xFF)
	case 0x8: // RTI
		line = "RTI"
	default: // reserved (0xD)
		line = fmt.Sprintf(".FILL x%04X", ir)
	}

	return line, next
}
