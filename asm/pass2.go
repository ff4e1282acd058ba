// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "github.com/beevik/lace/parser"

const (
	opBR   = 0x0
	opADD  = 0x1
	opLD   = 0x2
	opST   = 0x3
	opJSR  = 0x4
	opAND  = 0x5
	opLDR  = 0x6
	opSTR  = 0x7
	opNOT  = 0x9
	opLDI  = 0xA
	opSTI  = 0xB
	opJMP  = 0xC
	opLEA  = 0xE
	opTRAP = 0xF
)

var trapVectors = map[string]int64{
	"GETC": 0x20, "OUT": 0x21, "PUTS": 0x22, "IN": 0x23, "PUTSP": 0x24, "HALT": 0x25,
}

// pass2 performs §4.4: encode every address-annotated item into words, and
// build the source map. l.symbols must already be complete (pass 1 output).
func pass2(l *layout) (*Image, *SourceMap, error) {
	img := &Image{Origin: l.origin, Symbols: l.symbols, Breakpoints: l.breakpoints}
	smap := &SourceMap{}

	for _, li := range l.items {
		words, err := encodeItem(li, l.symbols)
		if err != nil {
			return nil, nil, err
		}
		for i, w := range words {
			addr := int(li.addr) + i
			img.Words = append(img.Words, w)
			// Per §4.4, .BLKW padding and .STRINGZ tail bytes map to their
			// originating directive's line, not a line of their own.
			smap.Add(addr, li.item.Line, li.item.Text)
		}
	}

	return img, smap, nil
}

func encodeItem(li layoutItem, symbols map[string]uint16) ([]uint16, error) {
	it := li.item
	if it.Kind == parser.ItemDirective {
		return encodeDirective(it, symbols)
	}
	word, err := encodeInstruction(it, li.addr, symbols)
	if err != nil {
		return nil, err
	}
	return []uint16{word}, nil
}

func encodeDirective(it parser.Item, symbols map[string]uint16) ([]uint16, error) {
	switch it.Op {
	case ".FILL":
		op := it.Operands[0]
		switch op.Kind {
		case parser.OperandInteger:
			return []uint16{uint16(uint32(op.Int))}, nil
		case parser.OperandLabel:
			addr, ok := symbols[op.Label]
			if !ok {
				return nil, newErr(KindUnknownLabel, op.Line, op.Col, op.Label)
			}
			return []uint16{addr}, nil
		}
	case ".BLKW":
		n := it.Operands[0].Int
		return make([]uint16, n), nil
	case ".STRINGZ":
		s := it.Operands[0].Str
		words := make([]uint16, 0, len(s)+1)
		for i := 0; i < len(s); i++ {
			words = append(words, uint16(s[i]))
		}
		words = append(words, 0)
		return words, nil
	}
	return nil, newErr(KindParse, it.Line, it.Col, "unknown directive "+it.Op)
}

func encodeInstruction(it parser.Item, addr uint16, symbols map[string]uint16) (uint16, error) {
	switch it.Op {
	case "ADD", "AND":
		return encodeAddAnd(it, symbols)
	case "NOT":
		dr, sr := it.Operands[0].Reg, it.Operands[1].Reg
		return uint16(opNOT)<<12 | uint16(dr)<<9 | uint16(sr)<<6 | 0x3F, nil
	case "JMP":
		return uint16(opJMP)<<12 | uint16(it.Operands[0].Reg)<<6, nil
	case "RET":
		return uint16(opJMP)<<12 | 7<<6, nil
	case "JSRR":
		return uint16(opJSR)<<12 | uint16(it.Operands[0].Reg)<<6, nil
	case "JSR":
		off, err := resolvePCOffset(it.Operands[0], addr, symbols, 11)
		if err != nil {
			return 0, err
		}
		return uint16(opJSR)<<12 | 1<<11 | off, nil
	case "LD", "LDI", "LEA", "ST", "STI":
		return encodePCRelMem(it, addr, symbols)
	case "LDR", "STR":
		return encodeBaseOffset(it)
	case "TRAP":
		tv := it.Operands[0].Int
		if tv < 0 || tv > 0xFF {
			return 0, newErr(KindImmediateOutOfRange, it.Line, it.Col, "trapvect8 out of range")
		}
		return uint16(opTRAP)<<12 | uint16(tv), nil
	case "GETC", "OUT", "PUTS", "IN", "PUTSP", "HALT":
		return uint16(opTRAP)<<12 | uint16(trapVectors[it.Op]), nil
	case "RTI":
		return 0x8000, nil
	case "NOP":
		return 0x0000, nil
	default:
		return encodeBranch(it, addr, symbols)
	}
}

func encodeAddAnd(it parser.Item, symbols map[string]uint16) (uint16, error) {
	op := uint16(opADD)
	if it.Op == "AND" {
		op = opAND
	}
	dr, sr1, third := it.Operands[0].Reg, it.Operands[1].Reg, it.Operands[2]
	word := op<<12 | uint16(dr)<<9 | uint16(sr1)<<6
	if third.Kind == parser.OperandRegister {
		return word | uint16(third.Reg), nil
	}
	if third.Int < -16 || third.Int > 15 {
		return 0, newErr(KindImmediateOutOfRange, third.Line, third.Col, "imm5 out of range")
	}
	return word | 1<<5 | uint16(third.Int)&0x1F, nil
}

func encodeBaseOffset(it parser.Item) (uint16, error) {
	op := uint16(opLDR)
	if it.Op == "STR" {
		op = opSTR
	}
	dr, base, off := it.Operands[0].Reg, it.Operands[1].Reg, it.Operands[2]
	if off.Int < -32 || off.Int > 31 {
		return 0, newErr(KindImmediateOutOfRange, off.Line, off.Col, "offset6 out of range")
	}
	return op<<12 | uint16(dr)<<9 | uint16(base)<<6 | uint16(off.Int)&0x3F, nil
}

func encodePCRelMem(it parser.Item, addr uint16, symbols map[string]uint16) (uint16, error) {
	var op uint16
	switch it.Op {
	case "LD":
		op = opLD
	case "LDI":
		op = opLDI
	case "LEA":
		op = opLEA
	case "ST":
		op = opST
	case "STI":
		op = opSTI
	}
	dr := it.Operands[0].Reg
	off, err := resolvePCOffset(it.Operands[1], addr, symbols, 9)
	if err != nil {
		return 0, err
	}
	return op<<12 | uint16(dr)<<9 | off, nil
}

// branchConditions maps every admissible BR mnemonic suffix to its n/z/p bits.
var branchConditions = map[string][3]bool{
	"BR":    {true, true, true},
	"BRN":   {true, false, false},
	"BRZ":   {false, true, false},
	"BRP":   {false, false, true},
	"BRNZ":  {true, true, false},
	"BRNP":  {true, false, true},
	"BRZP":  {false, true, true},
	"BRNZP": {true, true, true},
}

func encodeBranch(it parser.Item, addr uint16, symbols map[string]uint16) (uint16, error) {
	bits, ok := branchConditions[it.Op]
	if !ok {
		return 0, newErr(KindParse, it.Line, it.Col, "unknown mnemonic "+it.Op)
	}
	off, err := resolvePCOffset(it.Operands[0], addr, symbols, 9)
	if err != nil {
		return 0, err
	}
	var nzp uint16
	if bits[0] {
		nzp |= 1 << 2
	}
	if bits[1] {
		nzp |= 1 << 1
	}
	if bits[2] {
		nzp |= 1
	}
	return uint16(opBR)<<12 | nzp<<9 | off, nil
}

// resolvePCOffset computes target − (addr_of_instruction + 1) and checks it
// fits in the given signed bit width (§4.4).
func resolvePCOffset(operand parser.Operand, addr uint16, symbols map[string]uint16, bits int) (uint16, error) {
	var target int64
	switch operand.Kind {
	case parser.OperandLabel:
		a, ok := symbols[operand.Label]
		if !ok {
			return 0, newErr(KindUnknownLabel, operand.Line, operand.Col, operand.Label)
		}
		target = int64(a)
	case parser.OperandInteger:
		target = operand.Int
	}

	offset := target - (int64(addr) + 1)
	min := int64(-1) << (bits - 1)
	max := int64(1)<<(bits-1) - 1
	if offset < min || offset > max {
		return 0, &Error{
			Kind: KindOffsetOutOfRange, Line: operand.Line, Col: operand.Col,
			Have: int(offset), Min: int(min), Max: int(max),
		}
	}
	mask := uint16(1)<<bits - 1
	return uint16(offset) & mask, nil
}
