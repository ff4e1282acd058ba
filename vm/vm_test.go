package vm

import (
	"bytes"
	"strings"
	"testing"
)

func loadVM(t *testing.T, words []uint16, origin uint16) (*Machine, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	console := NewConsole(strings.NewReader(""), out)
	m := NewMachine(console)
	for i, w := range words {
		m.Mem.StoreRaw(origin+uint16(i), w)
	}
	m.Reg.PC = origin
	return m, out
}

func stepVM(t *testing.T, m *Machine) StepOutcome {
	t.Helper()
	out, err := m.Step()
	if err != nil {
		t.Fatalf("unexpected step error: %v", err)
	}
	return out
}

func expectReg(t *testing.T, m *Machine, r int, want uint16) {
	t.Helper()
	if got := m.Reg.R[r]; got != want {
		t.Errorf("R%d = x%04X, want x%04X", r, got, want)
	}
}

func expectCC(t *testing.T, m *Machine, n, z, p bool) {
	t.Helper()
	if m.Reg.N != n || m.Reg.Z != z || m.Reg.P != p {
		t.Errorf("CC = N:%v Z:%v P:%v, want N:%v Z:%v P:%v", m.Reg.N, m.Reg.Z, m.Reg.P, n, z, p)
	}
}

func expectMem(t *testing.T, m *Machine, addr uint16, want uint16) {
	t.Helper()
	if got := m.Mem.LoadRaw(addr); got != want {
		t.Errorf("mem[x%04X] = x%04X, want x%04X", addr, got, want)
	}
}

func TestAddImmediate(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x12A3}, 0x3000) // ADD R1,R2,#3
	m.Reg.R[2] = 4
	stepVM(t, m)
	expectReg(t, m, 1, 7)
	expectCC(t, m, false, false, true)
}

func TestAndRegisterZero(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x5240}, 0x3000) // AND R1,R1,R0
	m.Reg.R[1] = 0xFFFF
	m.Reg.R[0] = 0
	stepVM(t, m)
	expectReg(t, m, 1, 0)
	expectCC(t, m, false, true, false)
}

func TestNot(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x923F}, 0x3000) // NOT R1,R0
	m.Reg.R[0] = 0x00FF
	stepVM(t, m)
	expectReg(t, m, 1, 0xFF00)
	expectCC(t, m, true, false, false)
}

func TestBrTaken(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x0E01}, 0x3000) // BRnzp #1 (offset 1)
	m.Reg.Z = true
	stepVM(t, m)
	expectReg(t, m, 7, 0) // unaffected
	if m.Reg.PC != 0x3002 {
		t.Errorf("PC = x%04X, want x3002", m.Reg.PC)
	}
}

func TestBrNotTaken(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x0001}, 0x3000) // BR with no condition bits set, never taken
	m.Reg.Z = true
	stepVM(t, m)
	if m.Reg.PC != 0x3001 {
		t.Errorf("PC = x%04X, want x3001", m.Reg.PC)
	}
}

func TestLeaDoesNotSetCC(t *testing.T) {
	m, _ := loadVM(t, []uint16{0xE1FF}, 0x3000) // LEA R0,#-1
	m.Reg.N, m.Reg.Z, m.Reg.P = false, true, false
	stepVM(t, m)
	expectCC(t, m, false, true, false) // unchanged
}

func TestStAndLd(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x3001, 0x2E00, 0x0000}, 0x3000)
	// ST R0,#1 (at x3000) -> stores R0 at x3002; LD R7,#0 (at x3001) -> loads from x3002 into R7
	m.Reg.R[0] = 0x1234
	stepVM(t, m)
	expectMem(t, m, 0x3002, 0x1234)
	stepVM(t, m)
	expectReg(t, m, 7, 0x1234)
}

func TestJsrSavesReturnAddress(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x4801}, 0x3000) // JSR #1 (PC-rel, 11 bit)
	out := stepVM(t, m)
	if !out.IsJSR || out.RetAddr != 0x3001 {
		t.Errorf("expected JSR outcome with retaddr x3001, got %+v", out)
	}
	expectReg(t, m, 7, 0x3001)
	if m.Reg.PC != 0x3002 {
		t.Errorf("PC = x%04X, want x3002", m.Reg.PC)
	}
}

func TestTrapHalt(t *testing.T) {
	m, _ := loadVM(t, []uint16{0xF025}, 0x3000) // TRAP x25 HALT
	out := stepVM(t, m)
	if !out.Halted {
		t.Error("expected halted outcome")
	}
}

func TestTrapOut(t *testing.T) {
	m, out := loadVM(t, []uint16{0xF021}, 0x3000) // TRAP x21 OUT
	m.Reg.R[0] = 'A'
	stepVM(t, m)
	if out.String() != "A" {
		t.Errorf("console output = %q, want %q", out.String(), "A")
	}
}

func TestTrapPuts(t *testing.T) {
	m, out := loadVM(t, []uint16{0xF022}, 0x3000) // TRAP x22 PUTS
	m.Mem.StoreRaw(0x4000, 'H')
	m.Mem.StoreRaw(0x4001, 'i')
	m.Mem.StoreRaw(0x4002, 0)
	m.Reg.R[0] = 0x4000
	stepVM(t, m)
	if out.String() != "Hi" {
		t.Errorf("console output = %q, want %q", out.String(), "Hi")
	}
}

func TestTrapUnknown(t *testing.T) {
	m, _ := loadVM(t, []uint16{0xF099}, 0x3000)
	_, err := m.Step()
	verr, ok := err.(*Error)
	if !ok || verr.Kind != KindUnknownTrap || verr.Vect != 0x99 {
		t.Fatalf("expected unknown trap error for vect x99, got %v", err)
	}
}

func TestRtiIsPrivileged(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x8000}, 0x3000)
	_, err := m.Step()
	verr, ok := err.(*Error)
	if !ok || verr.Kind != KindPrivilegedInstruction {
		t.Fatalf("expected privileged instruction error, got %v", err)
	}
}

func TestReservedOpcode(t *testing.T) {
	m, _ := loadVM(t, []uint16{0xD000}, 0x3000)
	_, err := m.Step()
	verr, ok := err.(*Error)
	if !ok || verr.Kind != KindReservedOpcode {
		t.Fatalf("expected reserved opcode error, got %v", err)
	}
}

func TestMcrClearHalts(t *testing.T) {
	m, _ := loadVM(t, []uint16{0x2001}, 0x3000) // LD R0,#1 -> loads from x3002 (unused, just to step)
	m.Mem.StoreRaw(0x3002, 0)
	stepVM(t, m)
	m.Mem.Store(AddrMCR, 0x0000)
	if !m.Mem.Halted() {
		t.Error("expected machine halted after MCR clear")
	}
}
