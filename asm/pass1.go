// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "github.com/beevik/lace/parser"

// layoutItem is a parser.Item annotated with the absolute address at which
// it begins emitting words (§4.3). Pass 1 never emits bytes; it only
// computes addresses and the symbol table.
type layoutItem struct {
	item parser.Item
	addr uint16
	size uint16 // number of words this item will emit in pass 2
}

// layout is pass 1's output: the declared origin, the address-annotated
// item sequence, the symbol table, and the source-declared breakpoints.
type layout struct {
	origin      uint16
	items       []layoutItem
	symbols     map[string]uint16
	breakpoints []uint16
}

// pass1 performs §4.3: layout and symbol resolution.
func pass1(items []parser.Item) (*layout, error) {
	l := &layout{symbols: make(map[string]uint16)}

	if len(items) == 0 {
		return nil, newErr(KindMissingOrig, 0, 0, "no .ORIG directive found")
	}
	idx := 0
	if items[idx].Kind != parser.ItemOrig {
		return nil, newErr(KindMissingOrig, items[idx].Line, items[idx].Col, "first item must be .ORIG")
	}

	origItem := items[idx]
	if origItem.Orig > 0xFFFF || origItem.Orig < 0 {
		return nil, newErr(KindOrigOutOfRange, origItem.Line, origItem.Col, "")
	}
	l.origin = uint16(origItem.Orig)
	idx++

	lc := l.origin
	ended := false

	for ; idx < len(items); idx++ {
		it := items[idx]

		if it.Kind == parser.ItemOrig {
			return nil, newErr(KindMultipleOrig, it.Line, it.Col, "")
		}
		if ended {
			// Items after .END are ignored entirely (§4.3).
			continue
		}

		if it.Label != "" {
			if _, dup := l.symbols[it.Label]; dup {
				return nil, newErr(KindDuplicateLabel, it.Line, it.Col, it.Label)
			}
			l.symbols[it.Label] = lc
		}

		switch it.Kind {
		case parser.ItemEnd:
			ended = true
			continue
		case parser.ItemLabelDef:
			// Label already bound above; no size.
			continue
		case parser.ItemBreak:
			l.breakpoints = append(l.breakpoints, lc)
			continue
		case parser.ItemInstruction:
			l.items = append(l.items, layoutItem{item: it, addr: lc, size: 1})
			lc++
		case parser.ItemDirective:
			size, err := directiveSize(it)
			if err != nil {
				return nil, err
			}
			if uint32(lc)+uint32(size) > 0x10000 {
				return nil, newErr(KindBlkwBadSize, it.Line, it.Col, "directive overruns address space")
			}
			l.items = append(l.items, layoutItem{item: it, addr: lc, size: size})
			lc += size
		}
	}

	if !ended {
		return nil, newErr(KindEndBeforeOrig, 0, 0, "missing .END")
	}

	return l, nil
}

func directiveSize(it parser.Item) (uint16, error) {
	switch it.Op {
	case ".FILL":
		return 1, nil
	case ".BLKW":
		n := it.Operands[0].Int
		if n < 1 {
			return 0, newErr(KindBlkwBadSize, it.Line, it.Col, "size must be >= 1")
		}
		return uint16(n), nil
	case ".STRINGZ":
		return uint16(len(it.Operands[0].Str) + 1), nil
	default:
		return 0, newErr(KindParse, it.Line, it.Col, "unknown directive "+it.Op)
	}
}
