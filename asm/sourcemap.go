// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"encoding/json"
	"io"
	"sort"
)

// SourceLine maps one image address back to its originating source line.
type SourceLine struct {
	Address int
	Line    int
	Text    string
}

// SourceMap is the address → source-line relation described in §3 ("Image").
// It is not part of the object format; it is the debugger-owned sidecar
// named in §6 (the `.map` file), persisted as JSON, adapted from the
// teacher assembler's own SourceMap.ReadFrom/WriteTo pair.
type SourceMap struct {
	Lines []SourceLine
}

// Add records that addr originated from the given source line and text.
// Callers (pass-2) must call this in increasing address order so Search
// can binary-search.
func (m *SourceMap) Add(addr, line int, text string) {
	m.Lines = append(m.Lines, SourceLine{Address: addr, Line: line, Text: text})
}

// Search finds the source line at addr. ok is false if no instruction or
// directive originated the word at addr.
func (m *SourceMap) Search(addr int) (line SourceLine, ok bool) {
	i := sort.Search(len(m.Lines), func(i int) bool {
		return m.Lines[i].Address >= addr
	})
	if i < len(m.Lines) && m.Lines[i].Address == addr {
		return m.Lines[i], true
	}
	return SourceLine{}, false
}

// ReadFrom reads the contents of an exported source map file.
func (m *SourceMap) ReadFrom(r io.Reader) (n int64, err error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(b, m); err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// WriteTo writes the contents of the source map to an output stream.
func (m *SourceMap) WriteTo(w io.Writer) (n int64, err error) {
	b, err := json.Marshal(*m)
	if err != nil {
		return 0, err
	}
	nn, err := w.Write(b)
	return int64(nn), err
}
