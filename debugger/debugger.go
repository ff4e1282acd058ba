// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debugger implements the interactive, source-level LC-3 debugger
// of spec §4.7/§4.8: a REPL built around step.Engine and asm.SourceMap,
// generalized from host/host.go's command-tree dispatch loop.
package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/cmd"
	"github.com/beevik/lace/asm"
	"github.com/beevik/lace/disasm"
	"github.com/beevik/lace/step"
	"github.com/beevik/lace/vm"
)

var cmds *cmd.Tree

func init() {
	cmds = cmd.NewTree("lace", []cmd.Command{
		{
			Name:     "help",
			Shortcut: "?",
			Data:     (*Debugger).cmdHelp,
		},
		{
			Name:     "breakpoint",
			Shortcut: "b",
			Brief:    "Breakpoint commands",
			Subcommands: cmd.NewTree("Breakpoint", []cmd.Command{
				{Name: "list", Brief: "List breakpoints", HelpText: "breakpoint list", Data: (*Debugger).cmdBreakpointList},
				{Name: "add", Brief: "Add a breakpoint", HelpText: "breakpoint add <address>", Data: (*Debugger).cmdBreakpointAdd},
				{Name: "remove", Brief: "Remove a breakpoint", HelpText: "breakpoint remove <address>", Data: (*Debugger).cmdBreakpointRemove},
				{Name: "enable", Brief: "Enable a breakpoint", HelpText: "breakpoint enable <address>", Data: (*Debugger).cmdBreakpointEnable},
				{Name: "disable", Brief: "Disable a breakpoint", HelpText: "breakpoint disable <address>", Data: (*Debugger).cmdBreakpointDisable},
			}),
		},
		{
			Name:     "disassemble",
			Shortcut: "d",
			Brief:    "Disassemble memory",
			HelpText: "disassemble [<address+>] [<lines>]",
			Data:     (*Debugger).cmdDisassemble,
		},
		{
			Name:     "evaluate",
			Shortcut: "e",
			Brief:    "Assemble a single instruction and apply it to the machine",
			HelpText: "evaluate <instruction>",
			Data:     (*Debugger).cmdEvaluate,
		},
		{
			Name:     "list",
			Shortcut: "l",
			Brief:    "List source lines",
			HelpText: "list [<address+>] [<lines>]",
			Data:     (*Debugger).cmdList,
		},
		{
			Name:     "load",
			Brief:    "Load an object file",
			HelpText: "load <filename>",
			Data:     (*Debugger).cmdLoad,
		},
		{
			Name:     "memory",
			Brief:    "Memory commands",
			Subcommands: cmd.NewTree("Memory", []cmd.Command{
				{Name: "dump", Brief: "Dump memory", HelpText: "memory dump [<address+>] [<words>]", Data: (*Debugger).cmdMemoryDump},
				{Name: "set", Brief: "Set memory", HelpText: "memory set <address+> <value>", Data: (*Debugger).cmdMemorySet},
			}),
		},
		{
			Name:     "quit",
			Brief:    "Quit the debugger",
			HelpText: "quit",
			Data:     (*Debugger).cmdQuit,
		},
		{
			Name:     "registers",
			Shortcut: "r",
			Brief:    "Display register contents",
			HelpText: "registers",
			Data:     (*Debugger).cmdRegisters,
		},
		{
			Name:     "run",
			Brief:    "Continue running until a breakpoint or halt",
			HelpText: "run",
			Data:     (*Debugger).cmdRun,
		},
		{
			Name:     "set",
			Brief:    "Set a debugger variable",
			HelpText: "set [<var> <value>]",
			Data:     (*Debugger).cmdSet,
		},
		{
			Name:     "step",
			Shortcut: "s",
			Brief:    "Step over the next instruction",
			HelpText: "step",
			Data:     (*Debugger).cmdStep,
			Subcommands: cmd.NewTree("Step", []cmd.Command{
				{Name: "into", Brief: "Step into the next instruction", HelpText: "step into [<count>]", Data: (*Debugger).cmdStepIn},
				{Name: "out", Brief: "Step out of the current subroutine", HelpText: "step out", Data: (*Debugger).cmdStepOut},
			}),
		},
		{
			Name:     "print",
			Shortcut: "p",
			Brief:    "Print a register or memory location",
			HelpText: "print [<location>]",
			Data:     (*Debugger).cmdPrint,
		},
		{
			Name:     "move",
			Shortcut: "m",
			Brief:    "Write a register or memory location",
			HelpText: "move <location> <value>",
			Data:     (*Debugger).cmdMove,
		},
		{
			Name:     "goto",
			Shortcut: "g",
			Brief:    "Set PC to an address",
			HelpText: "goto <location>",
			Data:     (*Debugger).cmdGoto,
		},
		{
			Name:     "reset",
			Shortcut: "z",
			Brief:    "Restore memory, registers, and PC to post-load state",
			HelpText: "reset",
			Data:     (*Debugger).cmdReset,
		},
		{
			Name:     "exit",
			Shortcut: "x",
			Brief:    "Terminate the process",
			HelpText: "exit",
			Data:     (*Debugger).cmdExit,
		},

		// Aliases for nested commands.
		{Name: "ba", Alias: "breakpoint add"},
		{Name: "br", Alias: "breakpoint remove"},
		{Name: "bl", Alias: "breakpoint list"},
		{Name: "be", Alias: "breakpoint enable"},
		{Name: "bd", Alias: "breakpoint disable"},
		{Name: "md", Alias: "memory dump"},
		{Name: "ms", Alias: "memory set"},
		{Name: "si", Alias: "step into"},
		{Name: "so", Alias: "step out"},
		{Name: ".", Alias: "registers"},
		{Name: "continue", Alias: "run"},
		{Name: "assembly", Alias: "list"},
	})
}

type state byte

const (
	stateProcessingCommands state = iota
	stateRunning
)

// Debugger is the interactive LC-3 debugger host: a step.Engine wrapping a
// vm.Machine, a source map for source-level display, and a command-tree
// REPL, generalized from host.Host.
type Debugger struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool

	engine      *step.Engine
	sourceMap   *asm.SourceMap
	symbols     map[string]uint16
	settings    *settings
	lastCmd     *cmd.Selection
	state       state
	loadedImage *asm.Image
}

// New creates a debugger around the given machine.
func New(m *vm.Machine) *Debugger {
	return &Debugger{
		engine:    step.NewEngine(m),
		sourceMap: &asm.SourceMap{},
		symbols:   map[string]uint16{},
		settings:  newSettings(),
		state:     stateProcessingCommands,
	}
}

// LoadImage installs an assembled image and its source map as the
// debugger's active program.
func (d *Debugger) LoadImage(img *asm.Image, sm *asm.SourceMap) {
	m := d.engine.Machine
	for i, w := range img.Words {
		m.Mem.StoreRaw(img.Origin+uint16(i), w)
	}
	m.Reg.PC = img.Origin
	if sm != nil {
		d.sourceMap = sm
	}
	if img.Symbols != nil {
		d.symbols = img.Symbols
	}
	for _, addr := range img.Breakpoints {
		d.engine.AddSourceBreakpoint(addr)
	}
	d.loadedImage = img
}

// RunCommands accepts debugger commands from r and writes results to w,
// prompting for input when interactive, directly generalized from
// host/host.go's RunCommands.
func (d *Debugger) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	d.input = bufio.NewScanner(r)
	d.output = bufio.NewWriter(w)
	d.interactive = interactive

	if interactive {
		d.println()
	}
	d.displayPC()

	for {
		d.prompt()

		line, err := d.getLine()
		if err != nil {
			break
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				d.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				d.println("Command is ambiguous.")
				continue
			case err != nil:
				d.printf("ERROR: %v.\n", err)
				continue
			}
		} else if d.lastCmd != nil {
			c = *d.lastCmd
		}

		if c.Command == nil {
			continue
		}
		d.lastCmd = &c

		handler := c.Command.Data.(func(*Debugger, cmd.Selection) error)
		if err := handler(d, c); err != nil {
			break
		}
	}
	d.flush()
}

// Break interrupts a running machine, used from a Ctrl-C signal handler.
func (d *Debugger) Break() {
	d.println()
	if d.state == stateRunning {
		d.displayPC()
	}
	d.state = stateProcessingCommands
	d.prompt()
}

func (d *Debugger) print(args ...any)                 { fmt.Fprint(d.output, args...) }
func (d *Debugger) printf(format string, args ...any) { fmt.Fprintf(d.output, format, args...); d.flush() }
func (d *Debugger) println(args ...any)               { fmt.Fprintln(d.output, args...); d.flush() }
func (d *Debugger) flush()                            { d.output.Flush() }

func (d *Debugger) getLine() (string, error) {
	if d.input.Scan() {
		return d.input.Text(), nil
	}
	if err := d.input.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (d *Debugger) prompt() {
	if d.interactive {
		d.printf("* ")
	}
}

func (d *Debugger) displayPC() {
	if !d.interactive {
		return
	}
	m := d.engine.Machine
	line, ok := d.sourceMap.Search(int(m.Reg.PC))
	if ok && line.Text != "" {
		d.printf("x%04X  %s\n", m.Reg.PC, line.Text)
	} else {
		d.printf("x%04X\n", m.Reg.PC)
	}
}

func (d *Debugger) addr(c cmd.Selection, index int, def uint16) (uint16, error) {
	if len(c.Args) <= index {
		return def, nil
	}
	return ParseAddress(c.Args[index], d.engine.Machine.Reg.PC, d.symbols)
}

func (d *Debugger) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		d.displayCommands(cmds)
		return nil
	}
	s, err := cmds.Lookup(strings.Join(c.Args, " "))
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	if s.Command.Subcommands != nil {
		d.displayCommands(s.Command.Subcommands)
		return nil
	}
	if s.Command.HelpText != "" {
		d.printf("Syntax: %s\n", s.Command.HelpText)
	}
	if s.Command.Brief != "" {
		d.printf("%s\n", s.Command.Brief)
	}
	return nil
}

func (d *Debugger) displayCommands(tree *cmd.Tree) {
	d.printf("%s commands:\n", tree.Title)
	for _, c := range tree.Commands {
		if c.Brief != "" {
			d.printf("    %-15s  %s\n", c.Name, c.Brief)
		}
	}
}

func (d *Debugger) cmdBreakpointList(c cmd.Selection) error {
	if len(d.engine.Breakpoints) == 0 {
		d.println("No breakpoints set.")
		return nil
	}
	for _, b := range d.engine.Breakpoints {
		if b.StepOver {
			continue
		}
		status := "enabled"
		if b.Disabled {
			status = "disabled"
		}
		d.printf("  x%04X  %s\n", b.Address, status)
	}
	return nil
}

func (d *Debugger) cmdBreakpointAdd(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.engine.Machine.Reg.PC)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	d.engine.AddBreakpoint(addr)
	d.printf("Breakpoint set at x%04X.\n", addr)
	return nil
}

func (d *Debugger) cmdBreakpointRemove(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.engine.Machine.Reg.PC)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	d.engine.RemoveBreakpoint(addr)
	return nil
}

func (d *Debugger) cmdBreakpointEnable(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.engine.Machine.Reg.PC)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	d.engine.EnableBreakpoint(addr, true)
	return nil
}

func (d *Debugger) cmdBreakpointDisable(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.engine.Machine.Reg.PC)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	d.engine.EnableBreakpoint(addr, false)
	return nil
}

func (d *Debugger) cmdDisassemble(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.settings.NextDisasmAddr)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	lines := d.settings.DisasmLines
	if len(c.Args) > 1 {
		if n, err := strconv.Atoi(c.Args[1]); err == nil {
			lines = n
		}
	}
	m := d.engine.Machine
	for i := 0; i < lines; i++ {
		word := m.Mem.LoadRaw(addr)
		var line string
		line, addr = disasm.Disassemble(m.Mem, addr)
		d.printf("x%04X  %04X  %s\n", addr-1, word, line)
	}
	d.settings.NextDisasmAddr = addr
	return nil
}

func (d *Debugger) cmdEvaluate(c cmd.Selection) error {
	if len(c.Args) == 0 {
		d.println("Syntax: evaluate <instruction>")
		return nil
	}
	if op := strings.ToUpper(c.Args[0]); strings.HasPrefix(op, "BR") {
		d.println("cannot evaluate a branch instruction")
		return nil
	} else if op == "HALT" {
		d.println("cannot evaluate HALT")
		return nil
	}
	line := strings.Join(c.Args, " ")
	word, err := asm.AssembleInstruction(line, d.engine.Machine.Reg.PC, d.symbols)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	if word>>12 == 0x0 {
		d.println("cannot evaluate a branch instruction")
		return nil
	}
	if word>>12 == 0xF && word&0xFF == 0x25 {
		d.println("cannot evaluate HALT")
		return nil
	}
	m := d.engine.Machine
	out, err := m.ExecuteWord(word)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	d.printf("x%04X\n", word)
	if out.Halted {
		d.println("Machine halted.")
	}
	d.cmdRegisters(c)
	return nil
}

func (d *Debugger) cmdList(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.engine.Machine.Reg.PC)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	line, ok := d.sourceMap.Search(int(addr))
	if !ok {
		d.println("No source available at this address.")
		return nil
	}
	d.printf("%d: %s\n", line.Line, line.Text)
	return nil
}

func (d *Debugger) cmdLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		d.println("Syntax: load <filename>")
		return nil
	}
	filename := c.Args[0]
	file, err := os.Open(filename)
	if err != nil {
		d.printf("Failed to open '%s': %v\n", filename, err)
		return nil
	}
	defer file.Close()

	img := &asm.Image{}
	if _, err := img.ReadFrom(file); err != nil {
		d.printf("Failed to load '%s': %v\n", filename, err)
		return nil
	}

	sm := &asm.SourceMap{}
	if mf, err := os.Open(strings.TrimSuffix(filename, ".lc3") + ".map"); err == nil {
		defer mf.Close()
		sm.ReadFrom(mf)
	}

	d.LoadImage(img, sm)
	d.printf("Loaded '%s' at x%04X.\n", filename, img.Origin)
	return nil
}

func (d *Debugger) cmdMemoryDump(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.settings.NextMemDumpAddr)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	words := d.settings.MemDumpWords
	if len(c.Args) > 1 {
		if n, err := strconv.Atoi(c.Args[1]); err == nil {
			words = n
		}
	}
	m := d.engine.Machine
	for row := 0; row < words; row += 8 {
		d.printf("x%04X ", addr+uint16(row))
		for col := 0; col < 8 && row+col < words; col++ {
			d.printf(" %04X", m.Mem.LoadRaw(addr+uint16(row+col)))
		}
		d.println()
	}
	d.settings.NextMemDumpAddr = addr + uint16(words)
	return nil
}

func (d *Debugger) cmdMemorySet(c cmd.Selection) error {
	if len(c.Args) < 2 {
		d.println("Syntax: memory set <address> <value>")
		return nil
	}
	addr, err := ParseAddress(c.Args[0], d.engine.Machine.Reg.PC, d.symbols)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	value, err := strconv.ParseUint(strings.TrimPrefix(c.Args[1], "x"), 16, 16)
	if err != nil {
		d.printf("bad value %q\n", c.Args[1])
		return nil
	}
	d.engine.Machine.Mem.StoreRaw(addr, uint16(value))
	return nil
}

func (d *Debugger) cmdQuit(c cmd.Selection) error {
	return errors.New("exiting")
}

func (d *Debugger) cmdRegisters(c cmd.Selection) error {
	r := d.engine.Machine.Reg
	d.printf("R0=x%04X R1=x%04X R2=x%04X R3=x%04X\n", r.R[0], r.R[1], r.R[2], r.R[3])
	d.printf("R4=x%04X R5=x%04X R6=x%04X R7=x%04X\n", r.R[4], r.R[5], r.R[6], r.R[7])
	d.printf("PC=x%04X CC=%s\n", r.PC, ccString(r))
	return nil
}

func ccString(r vm.Registers) string {
	switch {
	case r.N:
		return "N"
	case r.Z:
		return "Z"
	case r.P:
		return "P"
	default:
		return "-"
	}
}

func (d *Debugger) cmdRun(c cmd.Selection) error {
	d.printf("Running from x%04X. Press ctrl-C to break.\n", d.engine.Machine.Reg.PC)
	d.state = stateRunning
	res := d.engine.Continue()
	d.state = stateProcessingCommands
	d.reportStop(res)
	return nil
}

func (d *Debugger) cmdStepIn(c cmd.Selection) error {
	n := 1
	if len(c.Args) > 0 {
		if v, err := strconv.Atoi(c.Args[0]); err == nil {
			n = v
		}
	}
	res := d.engine.StepInto(n)
	d.reportStop(res)
	return nil
}

func (d *Debugger) cmdStepOut(c cmd.Selection) error {
	res := d.engine.StepOut()
	d.reportStop(res)
	return nil
}

func (d *Debugger) reportStop(res step.Result) {
	switch res.Reason {
	case step.StopHalt:
		d.println("Machine halted.")
	case step.StopBreakpoint:
		d.printf("Breakpoint hit at x%04X.\n", d.engine.Machine.Reg.PC)
	case step.StopError:
		d.printf("Error: %v\n", res.Err)
	}
	d.displayPC()
}

// registerIndex reports whether name names a register ("R0".."R7", "PC"),
// per print/move's "reads/writes a register or memory word" wording.
func registerIndex(name string) (idx int, isPC, ok bool) {
	switch strings.ToUpper(name) {
	case "PC":
		return 0, true, true
	case "R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7":
		return int(name[len(name)-1] - '0'), false, true
	default:
		return 0, false, false
	}
}

func (d *Debugger) cmdPrint(c cmd.Selection) error {
	loc := "PC"
	if len(c.Args) > 0 {
		loc = c.Args[0]
	}

	var value uint16
	if idx, isPC, ok := registerIndex(loc); ok {
		if isPC {
			value = d.engine.Machine.Reg.PC
		} else {
			value = d.engine.Machine.Reg.R[idx]
		}
	} else {
		addr, err := ParseAddress(loc, d.engine.Machine.Reg.PC, d.symbols)
		if err != nil {
			d.printf("%v\n", err)
			return nil
		}
		value = d.engine.Machine.Mem.LoadRaw(addr)
	}

	ascii := "."
	if b := byte(value & 0xFF); b >= 0x20 && b < 0x7F {
		ascii = string(b)
	}
	d.printf("signed=%d unsigned=%d hex=x%04X ascii=%q\n", int16(value), value, value, ascii)
	return nil
}

func (d *Debugger) cmdMove(c cmd.Selection) error {
	if len(c.Args) < 2 {
		d.println("Syntax: move <location> <value>")
		return nil
	}
	value, err := strconv.ParseUint(strings.TrimPrefix(c.Args[1], "x"), 16, 16)
	if err != nil {
		d.printf("bad value %q\n", c.Args[1])
		return nil
	}

	if idx, isPC, ok := registerIndex(c.Args[0]); ok {
		if isPC {
			d.engine.Machine.Reg.PC = uint16(value)
		} else {
			d.engine.Machine.Reg.R[idx] = uint16(value)
		}
		return nil
	}

	addr, err := ParseAddress(c.Args[0], d.engine.Machine.Reg.PC, d.symbols)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	d.engine.Machine.Mem.StoreRaw(addr, uint16(value))
	return nil
}

func (d *Debugger) cmdGoto(c cmd.Selection) error {
	addr, err := d.addr(c, 0, d.engine.Machine.Reg.PC)
	if err != nil {
		d.printf("%v\n", err)
		return nil
	}
	d.engine.Machine.Reg.PC = addr
	d.printf("PC=x%04X\n", addr)
	return nil
}

func (d *Debugger) cmdReset(c cmd.Selection) error {
	if d.loadedImage == nil {
		d.println("Nothing loaded.")
		return nil
	}
	m := d.engine.Machine
	m.Reset()
	for i, w := range d.loadedImage.Words {
		m.Mem.StoreRaw(d.loadedImage.Origin+uint16(i), w)
	}
	m.Reg.PC = d.loadedImage.Origin

	kept := d.engine.Breakpoints[:0]
	for _, b := range d.engine.Breakpoints {
		if !b.FromSource {
			kept = append(kept, b)
		}
	}
	d.engine.Breakpoints = kept
	for _, addr := range d.loadedImage.Breakpoints {
		d.engine.AddSourceBreakpoint(addr)
	}

	d.println("Reset to post-load state.")
	d.displayPC()
	return nil
}

func (d *Debugger) cmdExit(c cmd.Selection) error {
	d.flush()
	os.Exit(0)
	return nil
}

func (d *Debugger) cmdStep(c cmd.Selection) error {
	res := d.engine.Step()
	d.reportStop(res)
	return nil
}

func (d *Debugger) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		d.println("Variables:")
		d.settings.Display(d.output)
	case 1:
		d.println("Syntax: set <var> <value>")
	default:
		key, value := c.Args[0], strings.Join(c.Args[1:], " ")
		if v, err := strconv.ParseUint(strings.TrimPrefix(value, "x"), 16, 16); err == nil && strings.HasPrefix(value, "x") {
			if err := d.settings.Set(key, uint16(v)); err != nil {
				d.printf("%v\n", err)
			}
			return nil
		}
		if v, err := strconv.Atoi(value); err == nil {
			if err := d.settings.Set(key, v); err != nil {
				d.printf("%v\n", err)
			}
			return nil
		}
		if v, err := strconv.ParseBool(value); err == nil {
			if err := d.settings.Set(key, v); err != nil {
				d.printf("%v\n", err)
			}
			return nil
		}
		d.printf("invalid value %q\n", value)
	}
	return nil
}
