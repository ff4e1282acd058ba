package step

import (
	"bytes"
	"strings"
	"testing"

	"github.com/beevik/lace/vm"
)

func newEngine(t *testing.T, words []uint16, origin uint16) (*Engine, *vm.Machine) {
	t.Helper()
	console := vm.NewConsole(strings.NewReader(""), &bytes.Buffer{})
	m := vm.NewMachine(console)
	for i, w := range words {
		m.Mem.StoreRaw(origin+uint16(i), w)
	}
	m.Reg.PC = origin
	return NewEngine(m), m
}

func TestStepIntoCount(t *testing.T) {
	e, m := newEngine(t, []uint16{0x1021, 0x1042, 0x1063}, 0x3000)
	res := e.StepInto(2)
	if res.Reason != StopCount || res.Steps != 2 {
		t.Fatalf("got %+v", res)
	}
	if m.Reg.PC != 0x3002 {
		t.Errorf("PC = x%04X", m.Reg.PC)
	}
}

func TestStepIntoStopsAtBreakpoint(t *testing.T) {
	e, m := newEngine(t, []uint16{0x1021, 0x1042, 0x1063}, 0x3000)
	e.AddBreakpoint(0x3001)
	res := e.StepInto(5)
	if res.Reason != StopBreakpoint || res.Steps != 1 {
		t.Fatalf("got %+v", res)
	}
	if m.Reg.PC != 0x3001 {
		t.Errorf("PC = x%04X", m.Reg.PC)
	}
}

func TestContinueStopsAtHalt(t *testing.T) {
	e, _ := newEngine(t, []uint16{0x1021, 0xF025}, 0x3000)
	res := e.Continue()
	if res.Reason != StopHalt {
		t.Fatalf("got %+v", res)
	}
}

func TestContinueStopsAtBreakpoint(t *testing.T) {
	e, m := newEngine(t, []uint16{0x1021, 0x1042, 0xF025}, 0x3000)
	e.AddBreakpoint(0x3002)
	res := e.Continue()
	if res.Reason != StopBreakpoint {
		t.Fatalf("got %+v", res)
	}
	if m.Reg.PC != 0x3002 {
		t.Errorf("PC = x%04X", m.Reg.PC)
	}
}

func TestStepOutReturnsAtCallerAddress(t *testing.T) {
	// JSR to x3003; subroutine there does one ADD then JMP R7 (RET).
	words := []uint16{0x4802} // JSR #2 -> x3000+1+2 = x3003
	e, m := newEngine(t, words, 0x3000)
	m.Mem.StoreRaw(0x3003, 0x1021) // ADD R0,R0,#1
	m.Mem.StoreRaw(0x3004, 0xC1C0) // JMP R7 (RET)

	// Step the JSR itself first so R7 holds the return address.
	stepRes := e.StepInto(1)
	if stepRes.Reason != StopCount {
		t.Fatalf("unexpected JSR step result: %+v", stepRes)
	}
	if m.Reg.R[7] != 0x3001 {
		t.Fatalf("R7 = x%04X, want x3001", m.Reg.R[7])
	}

	res := e.StepOut()
	if res.Reason != StopReturn {
		t.Fatalf("got %+v", res)
	}
	if m.Reg.PC != 0x3001 {
		t.Errorf("PC = x%04X, want x3001", m.Reg.PC)
	}
}

func TestRemoveAndDisableBreakpoint(t *testing.T) {
	e, _ := newEngine(t, []uint16{0x1021, 0xF025}, 0x3000)
	e.AddBreakpoint(0x3001)
	e.EnableBreakpoint(0x3001, false)
	res := e.Continue()
	if res.Reason != StopHalt {
		t.Fatalf("disabled breakpoint should not stop execution: %+v", res)
	}
}
