// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import "fmt"

// Opcode nibbles, matching asm's encoder.
const (
	opBR   = 0x0
	opADD  = 0x1
	opLD   = 0x2
	opST   = 0x3
	opJSR  = 0x4
	opAND  = 0x5
	opLDR  = 0x6
	opSTR  = 0x7
	opRTI  = 0x8
	opNOT  = 0x9
	opLDI  = 0xA
	opSTI  = 0xB
	opJMP  = 0xC
	opRes  = 0xD
	opLEA  = 0xE
	opTRAP = 0xF
)

// Trap vectors implemented natively (§4.5) rather than by executing a
// service routine loaded into memory: a deliberate departure from
// lassandro-golc3's trap-vector-table approach, per spec's explicit
// requirement that trap handling live in the VM itself.
const (
	TrapGETC  uint16 = 0x20
	TrapOUT   uint16 = 0x21
	TrapPUTS  uint16 = 0x22
	TrapIN    uint16 = 0x23
	TrapPUTSP uint16 = 0x24
	TrapHALT  uint16 = 0x25
)

// StepOutcome reports what a single Step call did, for the step engine and
// debugger to react to (§4.6): whether the machine halted, and whether the
// instruction was a JSR/JSRR call.
type StepOutcome struct {
	Halted  bool
	PC      uint16 // PC of the instruction just executed
	IsJSR   bool   // JSR/JSRR executed, for step-over bookkeeping
	RetAddr uint16 // return address pushed to R7 by the JSR/JSRR, if IsJSR
}

// Machine is the LC-3 virtual machine: registers, memory, and a console,
// combined into the fetch/decode/execute loop of §4.5. Shape follows
// cpu/cpu.go's CPU{Reg, Mem} pairing, generalized to LC-3's register and
// memory types.
type Machine struct {
	Reg     Registers
	Mem     *Memory
	Console *Console
}

// NewMachine creates a machine with its own console wired to r/w.
func NewMachine(console *Console) *Machine {
	m := &Machine{Console: console}
	m.Mem = NewMemory(console)
	return m
}

// Reset clears all memory and registers (§3).
func (m *Machine) Reset() {
	m.Mem.Reset()
	m.Reg.Init()
}

// Step executes exactly one instruction at the current PC, per §4.5/§4.6.
func (m *Machine) Step() (StepOutcome, error) {
	pc := m.Reg.PC
	ir := m.Mem.LoadRaw(pc)
	m.Reg.PC = pc + 1
	return m.execute(pc, ir)
}

// ExecuteWord applies the effects of an already-encoded instruction word to
// the current register and memory state, without fetching it from memory
// and without permanently advancing PC: the debugger's eval command (§4.7)
// assembles a line in isolation and hands the resulting word here so that
// ALU results, loads/stores, and CC updates land exactly as they would from
// Step, while PC-relative math still resolves against the real PC.
func (m *Machine) ExecuteWord(ir uint16) (StepOutcome, error) {
	pc := m.Reg.PC
	m.Reg.PC = pc + 1
	out, err := m.execute(pc, ir)
	m.Reg.PC = pc
	return out, err
}

// execute performs the decode/execute half of Step: pc is the address the
// instruction was fetched from (or, for ExecuteWord, the address it is
// evaluated as if fetched from) and m.Reg.PC must already hold pc+1, since
// PC-relative operands and JSR's return address are both computed from it.
func (m *Machine) execute(pc uint16, ir uint16) (StepOutcome, error) {
	op := ir >> 12
	out := StepOutcome{PC: pc}

	switch op {
	case opADD:
		m.execAddAnd(ir, true)
	case opAND:
		m.execAddAnd(ir, false)
	case opNOT:
		dr := (ir >> 9) & 0x7
		sr := (ir >> 6) & 0x7
		m.Reg.R[dr] = ^m.Reg.R[sr]
		m.Reg.SetCC(m.Reg.R[dr])
	case opBR:
		n, z, p := (ir>>11)&1 != 0, (ir>>10)&1 != 0, (ir>>9)&1 != 0
		if (n && m.Reg.N) || (z && m.Reg.Z) || (p && m.Reg.P) {
			m.Reg.PC = pc + 1 + SignExtend(ir&0x1FF, 9)
		}
	case opJMP:
		base := (ir >> 6) & 0x7
		m.Reg.PC = m.Reg.R[base]
	case opJSR:
		ret := m.Reg.PC
		m.Reg.R[7] = ret
		out.IsJSR = true
		out.RetAddr = ret
		if (ir>>11)&1 != 0 {
			m.Reg.PC = pc + 1 + SignExtend(ir&0x7FF, 11)
		} else {
			base := (ir >> 6) & 0x7
			m.Reg.PC = m.Reg.R[base]
		}
	case opLD:
		addr := pc + 1 + SignExtend(ir&0x1FF, 9)
		dr := (ir >> 9) & 0x7
		m.Reg.R[dr] = m.Mem.Load(addr)
		m.Reg.SetCC(m.Reg.R[dr])
	case opLDI:
		addr := pc + 1 + SignExtend(ir&0x1FF, 9)
		indirect := m.Mem.Load(addr)
		dr := (ir >> 9) & 0x7
		m.Reg.R[dr] = m.Mem.Load(indirect)
		m.Reg.SetCC(m.Reg.R[dr])
	case opLDR:
		base := (ir >> 6) & 0x7
		addr := m.Reg.R[base] + SignExtend(ir&0x3F, 6)
		dr := (ir >> 9) & 0x7
		m.Reg.R[dr] = m.Mem.Load(addr)
		m.Reg.SetCC(m.Reg.R[dr])
	case opLEA:
		addr := pc + 1 + SignExtend(ir&0x1FF, 9)
		dr := (ir >> 9) & 0x7
		m.Reg.R[dr] = addr // LEA does not set CC (§9 resolved open question)
	case opST:
		addr := pc + 1 + SignExtend(ir&0x1FF, 9)
		sr := (ir >> 9) & 0x7
		m.Mem.Store(addr, m.Reg.R[sr])
	case opSTI:
		addr := pc + 1 + SignExtend(ir&0x1FF, 9)
		indirect := m.Mem.Load(addr)
		sr := (ir >> 9) & 0x7
		m.Mem.Store(indirect, m.Reg.R[sr])
	case opSTR:
		base := (ir >> 6) & 0x7
		addr := m.Reg.R[base] + SignExtend(ir&0x3F, 6)
		sr := (ir >> 9) & 0x7
		m.Mem.Store(addr, m.Reg.R[sr])
	case opTRAP:
		halted, err := m.execTrap(ir & 0xFF)
		if err != nil {
			return out, err
		}
		out.Halted = halted
	case opRTI:
		return out, &Error{Kind: KindPrivilegedInstruction, Msg: "RTI"}
	case opRes:
		return out, &Error{Kind: KindReservedOpcode, Msg: fmt.Sprintf("x%04X", ir)}
	}

	if m.Mem.Halted() {
		out.Halted = true
	}
	return out, nil
}

func (m *Machine) execAddAnd(ir uint16, add bool) {
	dr := (ir >> 9) & 0x7
	sr1 := (ir >> 6) & 0x7
	var b uint16
	if (ir>>5)&1 != 0 {
		b = SignExtend(ir&0x1F, 5)
	} else {
		b = m.Reg.R[ir&0x7]
	}
	if add {
		m.Reg.R[dr] = m.Reg.R[sr1] + b
	} else {
		m.Reg.R[dr] = m.Reg.R[sr1] & b
	}
	m.Reg.SetCC(m.Reg.R[dr])
}

// execTrap dispatches the six trap service routines natively against the
// console, per §4.5. Returns true if the trap halted the machine.
func (m *Machine) execTrap(vect uint16) (bool, error) {
	switch vect {
	case TrapGETC:
		b, err := m.Console.ReadChar()
		if err != nil {
			return false, err
		}
		m.Reg.R[0] = uint16(b)
	case TrapOUT:
		if err := m.Console.WriteChar(byte(m.Reg.R[0])); err != nil {
			return false, err
		}
	case TrapPUTS:
		addr := m.Reg.R[0]
		var s []byte
		for {
			w := m.Mem.LoadRaw(addr)
			if w == 0 {
				break
			}
			s = append(s, byte(w))
			addr++
		}
		if err := m.Console.WriteString(string(s)); err != nil {
			return false, err
		}
	case TrapIN:
		m.Console.Printf("Input a character> ")
		b, err := m.Console.ReadChar()
		if err != nil {
			return false, err
		}
		m.Console.WriteChar(b)
		m.Reg.R[0] = uint16(b)
	case TrapPUTSP:
		addr := m.Reg.R[0]
		var s []byte
		for {
			w := m.Mem.LoadRaw(addr)
			lo := byte(w & 0xFF)
			hi := byte(w >> 8)
			if lo == 0 {
				break
			}
			s = append(s, lo)
			if hi == 0 {
				break
			}
			s = append(s, hi)
			addr++
		}
		if err := m.Console.WriteString(string(s)); err != nil {
			return false, err
		}
	case TrapHALT:
		return true, nil
	default:
		return false, &Error{Kind: KindUnknownTrap, Vect: vect}
	}
	return false, nil
}
