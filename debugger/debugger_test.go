// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/beevik/lace/asm"
	"github.com/beevik/lace/vm"
)

// newDebugger assembles src and returns a Debugger with it loaded, in the
// style of vm/vm_test.go's loadVM helper.
func newDebugger(t *testing.T, src string) *Debugger {
	t.Helper()
	img, sm, err := asm.Assemble(src, "test", 0, nil)
	if err != nil {
		t.Fatalf("assemble error: %v", err)
	}
	console := vm.NewConsole(strings.NewReader(""), &bytes.Buffer{})
	m := vm.NewMachine(console)
	m.Reset()
	d := New(m)
	d.LoadImage(img, sm)
	return d
}

func run(t *testing.T, d *Debugger, commands string) string {
	t.Helper()
	var out bytes.Buffer
	d.RunCommands(strings.NewReader(commands), &out, false)
	return out.String()
}

func TestRegistersCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R1,R1,#5\nHALT\n.END\n")
	out := run(t, d, "step into\nregisters\n")
	if !strings.Contains(out, "R1=x0005") {
		t.Errorf("expected R1=x0005 in output, got:\n%s", out)
	}
	if !strings.Contains(out, "PC=x3001") {
		t.Errorf("expected PC=x3001 in output, got:\n%s", out)
	}
}

func TestStepInAndHalt(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R0,R0,#1\nHALT\n.END\n")
	out := run(t, d, "step into 2\n")
	if !strings.Contains(out, "Machine halted.") {
		t.Errorf("expected halt message, got:\n%s", out)
	}
}

func TestBreakpointAddListRemove(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R0,R0,#1\nADD R0,R0,#1\nHALT\n.END\n")
	out := run(t, d, "breakpoint add x3001\nbreakpoint list\nbreakpoint remove x3001\nbreakpoint list\n")
	if !strings.Contains(out, "x3001") {
		t.Errorf("expected breakpoint listed, got:\n%s", out)
	}
	if !strings.Contains(out, "No breakpoints set.") {
		t.Errorf("expected breakpoint removed, got:\n%s", out)
	}
}

func TestRunStopsAtBreakpoint(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R0,R0,#1\nADD R0,R0,#1\nHALT\n.END\n")
	out := run(t, d, "breakpoint add x3001\nrun\n")
	if !strings.Contains(out, "Breakpoint hit at x3001.") {
		t.Errorf("expected breakpoint hit message, got:\n%s", out)
	}
}

func TestEvaluateCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nHALT\n.END\n")
	out := run(t, d, "evaluate ADD R1,R1,#3\n")
	// ADD DR=1 SR1=1 imm5=3: 0001 001 001 1 00011
	if !strings.Contains(out, "x1263") {
		t.Errorf("expected x1263 in output, got:\n%s", out)
	}
	if !strings.Contains(out, "R1=x0003") {
		t.Errorf("expected evaluate to apply ADD to R1, got:\n%s", out)
	}
}

func TestEvaluateAppliesConditionCodes(t *testing.T) {
	// Scenario 6: R3 = x7FFF, eval ADD R3,R3,#1 -> R3 = x8000, CC = N.
	d := newDebugger(t, ".ORIG x3000\nHALT\n.END\n")
	run(t, d, "move R3 x7FFF\n")
	out := run(t, d, "eval ADD R3,R3,#1\n")
	if !strings.Contains(out, "R3=x8000") {
		t.Errorf("expected R3=x8000, got:\n%s", out)
	}
	if !strings.Contains(out, "CC=N") {
		t.Errorf("expected CC=N, got:\n%s", out)
	}
}

func TestEvaluateRejectsBranchAndHalt(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nLOOP HALT\n.END\n")
	out := run(t, d, "eval BRnzp LOOP\n")
	if !strings.Contains(out, "cannot evaluate a branch instruction") {
		t.Errorf("expected branch rejection, got:\n%s", out)
	}
	out = run(t, d, "eval TRAP x25\n")
	if !strings.Contains(out, "cannot evaluate HALT") {
		t.Errorf("expected HALT rejection, got:\n%s", out)
	}
}

func TestPrintCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R0,R0,#-1\nHALT\n.END\n")
	run(t, d, "step\n")
	out := run(t, d, "print R0\n")
	if !strings.Contains(out, "signed=-1") || !strings.Contains(out, "unsigned=65535") || !strings.Contains(out, "hex=xFFFF") {
		t.Errorf("expected signed/unsigned/hex rendering of R0, got:\n%s", out)
	}
}

func TestMoveCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nHALT\n.END\n")
	out := run(t, d, "move R2 x0042\nprint R2\n")
	if !strings.Contains(out, "hex=x0042") {
		t.Errorf("expected R2 set to x0042, got:\n%s", out)
	}
}

func TestGotoCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R0,R0,#1\nADD R0,R0,#1\nHALT\n.END\n")
	out := run(t, d, "goto x3001\n")
	if !strings.Contains(out, "x3001") {
		t.Errorf("expected PC moved to x3001, got:\n%s", out)
	}
}

func TestResetCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R0,R0,#1\nHALT\n.END\n")
	run(t, d, "breakpoint add x3001\nstep\n")
	out := run(t, d, "reset\nregisters\nbreakpoint list\n")
	if !strings.Contains(out, "R0=x0000") {
		t.Errorf("expected R0 restored to 0, got:\n%s", out)
	}
	if !strings.Contains(out, "x3001") {
		t.Errorf("expected user breakpoint to survive reset, got:\n%s", out)
	}
}

func TestStepOverSkipsSubroutine(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nJSR SUB\nHALT\nSUB ADD R0,R0,#1\nRET\n.END\n")
	out := run(t, d, "step\nregisters\n")
	if !strings.Contains(out, "PC=x3001") {
		t.Errorf("expected step to land at x3001 after stepping over the call, got:\n%s", out)
	}
	if !strings.Contains(out, "R0=x0001") {
		t.Errorf("expected the subroutine to have run, got:\n%s", out)
	}
}

func TestMemorySetAndDump(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nHALT\n.END\n")
	out := run(t, d, "memory set x3010 xBEEF\nmemory dump x3010 1\n")
	if !strings.Contains(out, "BEEF") {
		t.Errorf("expected BEEF in memory dump, got:\n%s", out)
	}
}

func TestDisassembleCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nADD R1,R2,#3\nHALT\n.END\n")
	out := run(t, d, "disassemble x3000 2\n")
	if !strings.Contains(out, "ADD") || !strings.Contains(out, "TRAP") {
		t.Errorf("expected ADD and TRAP mnemonics, got:\n%s", out)
	}
}

func TestSetAndDisplaySettings(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nHALT\n.END\n")
	out := run(t, d, "set memdumpwords 4\nset\n")
	if !strings.Contains(out, "4") {
		t.Errorf("expected updated MemDumpWords reflected in settings display, got:\n%s", out)
	}
}

func TestHelpCommand(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nHALT\n.END\n")
	out := run(t, d, "help\n")
	if !strings.Contains(out, "lace commands:") {
		t.Errorf("expected command listing header, got:\n%s", out)
	}
}

func TestQuitStopsRunCommands(t *testing.T) {
	d := newDebugger(t, ".ORIG x3000\nHALT\n.END\n")
	out := run(t, d, "registers\nquit\nregisters\n")
	if strings.Count(out, "PC=") != 1 {
		t.Errorf("expected quit to stop processing further commands, got:\n%s", out)
	}
}
