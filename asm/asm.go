// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements the two-pass LC-3 assembler (§4.3/§4.4): layout &
// symbol resolution followed by instruction/directive encoding, producing
// an Image and a SourceMap.
package asm

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/lace/lexer"
	"github.com/beevik/lace/parser"
)

// Option is a bitmask of assembler tracing options, mirroring the teacher
// assembler's Option bitmask gating internal pass tracing.
type Option uint32

const (
	// OptTrace causes Assemble to write one summary line of trace output to
	// its trace writer after pass 1 and another after pass 2.
	OptTrace Option = 1 << iota
)

// Assemble runs the full two-pass pipeline (lexer → parser → pass-1 →
// pass-2) over source text and returns the resulting Image and SourceMap.
// name is used only for trace/log output, not for error text (errors carry
// line:col, per §7, not a filename — the caller attaches the filename when
// presenting diagnostics).
func Assemble(src string, name string, opt Option, trace io.Writer) (*Image, *SourceMap, error) {
	toks, err := lexer.All(src)
	if err != nil {
		return nil, nil, wrapLexError(err)
	}

	lines := strings.Split(src, "\n")
	lineText := func(n int) string {
		if n-1 >= 0 && n-1 < len(lines) {
			return lines[n-1]
		}
		return ""
	}

	items, err := parser.ParseAll(toks, lineText)
	if err != nil {
		return nil, nil, wrapParseError(err)
	}

	l, err := pass1(items)
	if err != nil {
		return nil, nil, err
	}
	if opt&OptTrace != 0 && trace != nil {
		fmt.Fprintf(trace, "%s: pass 1 complete, origin=x%04X, %d items\n", name, l.origin, len(l.items))
	}

	img, smap, err := pass2(l)
	if err != nil {
		return nil, nil, err
	}
	if opt&OptTrace != 0 && trace != nil {
		fmt.Fprintf(trace, "%s: pass 2 complete, %d words\n", name, len(img.Words))
	}

	return img, smap, nil
}

// AssembleInstruction assembles a single bare instruction line in isolation
// against an existing symbol table, for the debugger's `eval` command
// (§4.7). No label definitions or directives are admitted. Returns the
// encoded word, or an error if the line is a BR* or HALT (rejected per the
// eval contract) or does not parse/encode.
func AssembleInstruction(line string, addr uint16, symbols map[string]uint16) (uint16, error) {
	toks, err := lexer.All(line + "\n")
	if err != nil {
		return 0, wrapLexError(err)
	}
	items, err := parser.ParseAll(toks, nil)
	if err != nil {
		return 0, wrapParseError(err)
	}
	if len(items) != 1 || items[0].Kind != parser.ItemInstruction || items[0].Label != "" {
		return 0, newErr(KindParse, 0, 0, "eval requires a single instruction")
	}
	it := items[0]
	if strings.HasPrefix(it.Op, "BR") || it.Op == "HALT" {
		return 0, newErr(KindParse, it.Line, it.Col, "not simulable: "+it.Op)
	}
	return encodeInstruction(it, addr, symbols)
}

func wrapLexError(err error) error {
	if le, ok := err.(*lexer.Error); ok {
		return newErr(KindLex, le.Line, le.Col, le.Kind.String())
	}
	return err
}

func wrapParseError(err error) error {
	if pe, ok := err.(*parser.Error); ok {
		return newErr(KindParse, pe.Line, pe.Col, pe.Kind.String()+": "+pe.Msg)
	}
	return err
}
