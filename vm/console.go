// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/beevik/lace/term"
)

// Console is the host I/O abstraction shared by the trap service routines
// and the memory-mapped device registers (§4.5): "The non-trap I/O path
// and the trap path share the same host console abstraction." Grounded on
// lassandro-golc3's machine.DeviceHandler (separate buffered reader/writer
// for keyboard and display).
type Console struct {
	in     *bufio.Reader
	out    *bufio.Writer
	pending *byte // one character of read-ahead for KBSR/KBDR polling
}

// NewConsole wraps the given reader/writer as the VM's console.
func NewConsole(r io.Reader, w io.Writer) *Console {
	return &Console{in: bufio.NewReader(r), out: bufio.NewWriter(w)}
}

// ReadChar blocks for one raw character, used by GETC/IN and by KBDR reads
// once KBSR has reported one pending.
func (c *Console) ReadChar() (byte, error) {
	if c.pending != nil {
		b := *c.pending
		c.pending = nil
		return b, nil
	}
	b, err := c.in.ReadByte()
	if err != nil {
		return 0, &Error{Kind: KindIoFailed, Msg: err.Error()}
	}
	return b, nil
}

// Poll reports whether a character is available without consuming it, for
// KBSR reads. If no byte is already held or buffered, Poll reads one byte,
// which blocks until input arrives or the reader fails, and keeps it for the
// next ReadChar. It returns false only when that read fails (for example at
// end of input); it does not return false merely because no key has been
// pressed yet.
func (c *Console) Poll() bool {
	if c.pending != nil {
		return true
	}
	if c.in.Buffered() > 0 {
		return true
	}
	b, err := c.in.ReadByte()
	if err != nil {
		return false
	}
	c.pending = &b
	return true
}

// WriteChar emits one character to the display, used by OUT/PUTS/PUTSP and
// by DDR writes.
func (c *Console) WriteChar(b byte) error {
	if err := c.out.WriteByte(b); err != nil {
		return &Error{Kind: KindIoFailed, Msg: err.Error()}
	}
	return c.out.Flush()
}

// WriteString emits a string to the display without per-character flush
// overhead, flushing once at the end, matching §4.5's "flushed" contract
// for PUTS and PUTSP.
func (c *Console) WriteString(s string) error {
	if _, err := c.out.WriteString(s); err != nil {
		return &Error{Kind: KindIoFailed, Msg: err.Error()}
	}
	return c.out.Flush()
}

// Printf writes a formatted prompt to the console, used by the IN trap.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
	c.out.Flush()
}

// EnableRawMode puts f into raw input mode, if it's a terminal, so that
// GETC/IN traps see individual keystrokes rather than line-buffered input.
// The returned restore func undoes the change; it is a no-op if f is not a
// terminal.
func EnableRawMode(f *os.File) (restore func(), err error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	old, err := term.MakeRawInput(fd)
	if err != nil {
		return nil, err
	}
	return func() { term.Restore(fd, old) }, nil
}
