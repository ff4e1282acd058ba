// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package parser turns a lexed LC-3 token stream into a sequence of source items.
package parser

import (
	"fmt"
	"strings"

	"github.com/beevik/lace/lexer"
)

// ItemKind identifies the kind of a parsed source Item.
type ItemKind byte

const (
	ItemOrig ItemKind = iota
	ItemEnd
	ItemLabelDef
	ItemInstruction
	ItemDirective
	ItemBreak
)

// OperandKind identifies the kind of a parsed Operand.
type OperandKind byte

const (
	OperandRegister OperandKind = iota
	OperandInteger
	OperandLabel
	OperandString
)

// Operand is one operand slot of an instruction or directive.
type Operand struct {
	Kind  OperandKind
	Reg   int
	Int   int64
	Label string
	Str   string
	Line  int
	Col   int
}

// Item is one parsed line of source.
type Item struct {
	Kind     ItemKind
	Line     int
	Col      int
	Text     string    // raw source line, for the source map
	Label    string    // for ItemLabelDef
	Op       string    // mnemonic or directive name, uppercased
	Operands []Operand // parsed operands, opcode-directed
	Orig     int64     // for ItemOrig
}

// ErrorKind enumerates the ways the parser can fail on a line.
type ErrorKind byte

const (
	BadOperand ErrorKind = iota
	MissingOperand
	ExtraOperand
	MultipleLabels
	UnknownMnemonic
)

func (k ErrorKind) String() string {
	switch k {
	case BadOperand:
		return "bad operand"
	case MissingOperand:
		return "missing operand"
	case ExtraOperand:
		return "extra operand"
	case MultipleLabels:
		return "multiple labels on one line"
	case UnknownMnemonic:
		return "unknown mnemonic"
	default:
		return "parse error"
	}
}

// Error reports a parse failure at a source position.
type Error struct {
	Kind ErrorKind
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%d:%d: %s: %s", e.Line, e.Col, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Kind)
}

// operandSpec describes, per mnemonic, how many and what kind of operands
// are admissible. The parser is opcode-directed per the original design.
type operandSpec struct {
	kinds []OperandKind
}

var registerOnly = operandSpec{kinds: []OperandKind{OperandRegister}}

var instructionSpecs = map[string]operandSpec{
	"ADD":  {kinds: []OperandKind{OperandRegister, OperandRegister, OperandRegister}}, // or reg,reg,imm - checked specially
	"AND":  {kinds: []OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	"NOT":  {kinds: []OperandKind{OperandRegister, OperandRegister}},
	"JMP":  registerOnly,
	"JSRR": registerOnly,
	"RET":  {},
	"RTI":  {},
	"NOP":  {},
	"HALT": {}, "GETC": {}, "OUT": {}, "PUTS": {}, "IN": {}, "PUTSP": {},
	"LD":  {kinds: []OperandKind{OperandRegister, OperandLabel}},
	"LDI": {kinds: []OperandKind{OperandRegister, OperandLabel}},
	"LEA": {kinds: []OperandKind{OperandRegister, OperandLabel}},
	"ST":  {kinds: []OperandKind{OperandRegister, OperandLabel}},
	"STI": {kinds: []OperandKind{OperandRegister, OperandLabel}},
	"LDR": {kinds: []OperandKind{OperandRegister, OperandRegister, OperandInteger}},
	"STR": {kinds: []OperandKind{OperandRegister, OperandRegister, OperandInteger}},
	"JSR": {kinds: []OperandKind{OperandLabel}},
	"TRAP": {kinds: []OperandKind{OperandInteger}},
}

var branchMnemonics = map[string]bool{
	"BR": true, "BRN": true, "BRZ": true, "BRP": true,
	"BRNZ": true, "BRNP": true, "BRZP": true, "BRNZP": true,
}

var directiveArity = map[string]int{
	".ORIG": 1, ".END": 0, ".FILL": 1, ".BLKW": 1, ".STRINGZ": 1, ".BREAK": 0,
}

// Parser consumes a token stream and yields source Items, one per line.
type Parser struct {
	toks []lexer.Token
	pos  int
	line string // not set; ParseAll fills Item.Text from its lineText callback
}

// New creates a Parser over a token slice produced by the lexer.
func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// ParseAll parses the entire token stream into a slice of Items, one per
// non-empty source line. lineText supplies the raw source text for a given
// line number (used to populate Item.Text for the source map); it may be
// nil, in which case Item.Text is left empty.
func ParseAll(toks []lexer.Token, lineText func(line int) string) ([]Item, error) {
	p := New(toks)
	var items []Item
	for p.peek().Type != lexer.EOF {
		// Skip blank lines.
		if p.peek().Type == lexer.Newline {
			p.advance()
			continue
		}
		item, err := p.parseLine()
		if err != nil {
			return nil, err
		}
		if lineText != nil {
			item.Text = lineText(item.Line)
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *Parser) parseLine() (Item, error) {
	var labelDef string
	labelSeen := false

	tok := p.peek()
	line, col := tok.Line, tok.Col

	// Collect an optional label definition, then the actual item.
	for p.peek().Type == lexer.Label {
		if labelSeen {
			return Item{}, &Error{Kind: MultipleLabels, Line: p.peek().Line, Col: p.peek().Col}
		}
		labelDef = p.advance().Text
		labelSeen = true
	}

	switch p.peek().Type {
	case lexer.Directive:
		return p.parseDirectiveOrLabelOnly(labelDef, labelSeen, line, col)
	case lexer.Mnemonic:
		item, err := p.parseInstruction()
		if err != nil {
			return Item{}, err
		}
		item.Line, item.Col = line, col
		item.Label = labelDef
		return item, nil
	case lexer.Newline, lexer.EOF:
		if labelSeen {
			p.consumeLineEnd()
			return Item{Kind: ItemLabelDef, Label: labelDef, Line: line, Col: col}, nil
		}
		return Item{}, &Error{Kind: BadOperand, Line: line, Col: col, Msg: "empty line"}
	default:
		return Item{}, &Error{Kind: BadOperand, Line: p.peek().Line, Col: p.peek().Col, Msg: "expected directive or mnemonic"}
	}
}

func (p *Parser) parseDirectiveOrLabelOnly(label string, labelSeen bool, line, col int) (Item, error) {
	tok := p.advance() // Directive
	name := strings.ToUpper(tok.Text)

	switch name {
	case ".ORIG":
		v, err := p.parseIntegerOperand()
		if err != nil {
			return Item{}, err
		}
		p.consumeLineEnd()
		return Item{Kind: ItemOrig, Orig: v.Int, Line: line, Col: col, Label: label}, nil
	case ".END":
		p.consumeLineEnd()
		return Item{Kind: ItemEnd, Line: line, Col: col, Label: label}, nil
	case ".BREAK":
		p.consumeLineEnd()
		return Item{Kind: ItemBreak, Line: line, Col: col, Label: label}, nil
	case ".FILL":
		operand, err := p.parseFillOperand()
		if err != nil {
			return Item{}, err
		}
		p.consumeLineEnd()
		return Item{Kind: ItemDirective, Op: name, Operands: []Operand{operand}, Line: line, Col: col, Label: label}, nil
	case ".BLKW":
		v, err := p.parseIntegerOperand()
		if err != nil {
			return Item{}, err
		}
		p.consumeLineEnd()
		return Item{Kind: ItemDirective, Op: name, Operands: []Operand{v}, Line: line, Col: col, Label: label}, nil
	case ".STRINGZ":
		if p.peek().Type != lexer.String {
			return Item{}, &Error{Kind: BadOperand, Line: p.peek().Line, Col: p.peek().Col, Msg: "expected string"}
		}
		s := p.advance()
		p.consumeLineEnd()
		return Item{
			Kind: ItemDirective, Op: name,
			Operands: []Operand{{Kind: OperandString, Str: s.Text, Line: s.Line, Col: s.Col}},
			Line:     line, Col: col, Label: label,
		}, nil
	default:
		return Item{}, &Error{Kind: BadOperand, Line: line, Col: col, Msg: "unknown directive " + tok.Text}
	}
}

func (p *Parser) parseFillOperand() (Operand, error) {
	switch p.peek().Type {
	case lexer.Integer:
		t := p.advance()
		return Operand{Kind: OperandInteger, Int: t.Value, Line: t.Line, Col: t.Col}, nil
	case lexer.Label:
		t := p.advance()
		return Operand{Kind: OperandLabel, Label: t.Text, Line: t.Line, Col: t.Col}, nil
	default:
		return Operand{}, &Error{Kind: MissingOperand, Line: p.peek().Line, Col: p.peek().Col, Msg: ".FILL requires an integer or label"}
	}
}

func (p *Parser) parseIntegerOperand() (Operand, error) {
	if p.peek().Type != lexer.Integer {
		return Operand{}, &Error{Kind: MissingOperand, Line: p.peek().Line, Col: p.peek().Col}
	}
	t := p.advance()
	return Operand{Kind: OperandInteger, Int: t.Value, Line: t.Line, Col: t.Col}, nil
}

// parseInstruction parses a mnemonic and its opcode-directed operand list.
func (p *Parser) parseInstruction() (Item, error) {
	tok := p.advance()
	name := strings.ToUpper(tok.Text)

	if branchMnemonics[name] {
		return p.parseBranch(name, tok)
	}

	if name == "ADD" || name == "AND" {
		return p.parseAddAnd(name, tok)
	}

	spec, ok := instructionSpecs[name]
	if !ok {
		return Item{}, &Error{Kind: UnknownMnemonic, Line: tok.Line, Col: tok.Col, Msg: name}
	}

	var ops []Operand
	for i, kind := range spec.kinds {
		if i > 0 {
			if p.peek().Type != lexer.Comma {
				return Item{}, &Error{Kind: MissingOperand, Line: p.peek().Line, Col: p.peek().Col}
			}
			p.advance()
		}
		op, err := p.parseOperand(kind)
		if err != nil {
			return Item{}, err
		}
		ops = append(ops, op)
	}
	if p.peek().Type == lexer.Comma {
		return Item{}, &Error{Kind: ExtraOperand, Line: p.peek().Line, Col: p.peek().Col}
	}
	p.consumeLineEnd()
	return Item{Kind: ItemInstruction, Op: name, Operands: ops}, nil
}

func (p *Parser) parseBranch(name string, tok lexer.Token) (Item, error) {
	target, err := p.parseOperand(OperandLabel)
	if err != nil {
		return Item{}, err
	}
	p.consumeLineEnd()
	return Item{Kind: ItemInstruction, Op: name, Operands: []Operand{target}, Line: tok.Line, Col: tok.Col}, nil
}

func (p *Parser) parseAddAnd(name string, tok lexer.Token) (Item, error) {
	dr, err := p.parseOperand(OperandRegister)
	if err != nil {
		return Item{}, err
	}
	if p.peek().Type != lexer.Comma {
		return Item{}, &Error{Kind: MissingOperand, Line: p.peek().Line, Col: p.peek().Col}
	}
	p.advance()
	sr1, err := p.parseOperand(OperandRegister)
	if err != nil {
		return Item{}, err
	}
	if p.peek().Type != lexer.Comma {
		return Item{}, &Error{Kind: MissingOperand, Line: p.peek().Line, Col: p.peek().Col}
	}
	p.advance()

	var third Operand
	switch p.peek().Type {
	case lexer.Register:
		third, err = p.parseOperand(OperandRegister)
	case lexer.Integer:
		third, err = p.parseOperand(OperandInteger)
	default:
		return Item{}, &Error{Kind: BadOperand, Line: p.peek().Line, Col: p.peek().Col, Msg: "expected register or immediate"}
	}
	if err != nil {
		return Item{}, err
	}
	p.consumeLineEnd()
	return Item{Kind: ItemInstruction, Op: name, Operands: []Operand{dr, sr1, third}, Line: tok.Line, Col: tok.Col}, nil
}

func (p *Parser) parseOperand(kind OperandKind) (Operand, error) {
	tok := p.peek()
	switch kind {
	case OperandRegister:
		if tok.Type != lexer.Register {
			return Operand{}, &Error{Kind: BadOperand, Line: tok.Line, Col: tok.Col, Msg: "expected register"}
		}
		p.advance()
		return Operand{Kind: OperandRegister, Reg: int(tok.Text[1] - '0'), Line: tok.Line, Col: tok.Col}, nil
	case OperandInteger:
		if tok.Type != lexer.Integer {
			return Operand{}, &Error{Kind: BadOperand, Line: tok.Line, Col: tok.Col, Msg: "expected integer"}
		}
		p.advance()
		return Operand{Kind: OperandInteger, Int: tok.Value, Line: tok.Line, Col: tok.Col}, nil
	case OperandLabel:
		switch tok.Type {
		case lexer.Label:
			p.advance()
			return Operand{Kind: OperandLabel, Label: tok.Text, Line: tok.Line, Col: tok.Col}, nil
		case lexer.Integer:
			p.advance()
			return Operand{Kind: OperandInteger, Int: tok.Value, Line: tok.Line, Col: tok.Col}, nil
		default:
			return Operand{}, &Error{Kind: BadOperand, Line: tok.Line, Col: tok.Col, Msg: "expected label or address"}
		}
	default:
		return Operand{}, &Error{Kind: BadOperand, Line: tok.Line, Col: tok.Col}
	}
}

func (p *Parser) consumeLineEnd() {
	if p.peek().Type == lexer.Newline {
		p.advance()
	}
}

// ArityOf returns the operand count of the named directive (matched
// case-insensitively) and whether it is a known directive.
func ArityOf(directive string) (int, bool) {
	n, ok := directiveArity[strings.ToUpper(directive)]
	return n, ok
}
