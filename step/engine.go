// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package step implements the run-control state machine described in §4.6:
// Step, StepInto(n), StepOut, and Continue, layered on top of vm.Machine.
// Generalized from host/host.go's state enum and its step()/stepOver()
// JSR-detection logic (a breakpoint temporarily placed at the return
// address, then removed once hit).
package step

import "github.com/beevik/lace/vm"

// Breakpoint is an execution breakpoint, grounded on cpu/debug.go's
// Breakpoint{Address, Disabled, StepOver}: StepOver distinguishes a
// breakpoint the engine planted itself (for StepOut/step-over bookkeeping)
// from one the user set explicitly, so hitting it doesn't get reported to
// the debugger as a user breakpoint.
type Breakpoint struct {
	Address    uint16
	Disabled   bool
	StepOver   bool
	FromSource bool // planted from a .BREAK directive, re-added by reset
}

// Mode names the four run-control modes of §4.6.
type Mode int

const (
	ModeIdle Mode = iota
	ModeStep
	ModeStepInto
	ModeStepOut
	ModeContinue
)

// StopReason explains why Step, StepInto, StepOut or Continue returned
// control to the caller.
type StopReason int

const (
	StopCount      StopReason = iota // StepInto(n) ran its n steps, or Step finished its instruction or call
	StopBreakpoint                   // hit a user breakpoint
	StopHalt                         // machine halted (TRAP HALT or MCR clear)
	StopReturn                       // StepOut reached its target return address
	StopError                        // the machine reported a VM error
)

// Result reports the outcome of a Step, StepInto, StepOut or Continue call.
type Result struct {
	Reason StopReason
	Err    error
	Steps  int
}

// Engine drives a vm.Machine under the run-control modes of §4.6.
type Engine struct {
	Machine     *vm.Machine
	Breakpoints []Breakpoint
}

// NewEngine creates a step engine around the given machine.
func NewEngine(m *vm.Machine) *Engine {
	return &Engine{Machine: m}
}

// AddBreakpoint sets a user breakpoint at addr, ignoring duplicates.
func (e *Engine) AddBreakpoint(addr uint16) {
	for i := range e.Breakpoints {
		if e.Breakpoints[i].Address == addr && !e.Breakpoints[i].StepOver {
			return
		}
	}
	e.Breakpoints = append(e.Breakpoints, Breakpoint{Address: addr})
}

// AddSourceBreakpoint sets a breakpoint at addr planted from a .BREAK
// directive rather than a user command, so reset can rescan and re-add it
// without disturbing breakpoints the user set by hand.
func (e *Engine) AddSourceBreakpoint(addr uint16) {
	for i := range e.Breakpoints {
		if e.Breakpoints[i].Address == addr && !e.Breakpoints[i].StepOver {
			return
		}
	}
	e.Breakpoints = append(e.Breakpoints, Breakpoint{Address: addr, FromSource: true})
}

// RemoveBreakpoint removes the user breakpoint at addr, if any.
func (e *Engine) RemoveBreakpoint(addr uint16) {
	for i := range e.Breakpoints {
		if e.Breakpoints[i].Address == addr && !e.Breakpoints[i].StepOver {
			e.Breakpoints = append(e.Breakpoints[:i], e.Breakpoints[i+1:]...)
			return
		}
	}
}

// EnableBreakpoint enables or disables the user breakpoint at addr.
func (e *Engine) EnableBreakpoint(addr uint16, enabled bool) {
	for i := range e.Breakpoints {
		if e.Breakpoints[i].Address == addr && !e.Breakpoints[i].StepOver {
			e.Breakpoints[i].Disabled = !enabled
			return
		}
	}
}

func (e *Engine) userBreakAt(addr uint16) bool {
	for _, b := range e.Breakpoints {
		if b.Address == addr && !b.Disabled && !b.StepOver {
			return true
		}
	}
	return false
}

func (e *Engine) stepOverBreakAt(addr uint16) bool {
	for _, b := range e.Breakpoints {
		if b.Address == addr && b.StepOver {
			return true
		}
	}
	return false
}

func (e *Engine) clearStepOverBreaks() {
	kept := e.Breakpoints[:0]
	for _, b := range e.Breakpoints {
		if !b.StepOver {
			kept = append(kept, b)
		}
	}
	e.Breakpoints = kept
}

func (e *Engine) plantStepOverBreak(addr uint16) {
	e.Breakpoints = append(e.Breakpoints, Breakpoint{Address: addr, StepOver: true})
}

// Step executes one source-level instruction, stepping OVER a JSR/JSRR
// call rather than into it (§4.6's Step mode): a plain instruction runs
// once, but a call runs to completion first, mirroring StepOut's
// plant-a-temporary-breakpoint-at-the-return-address technique. TRAP
// service routines are dispatched natively inside a single Machine.Step
// call, so they never leave anything to run to completion.
func (e *Engine) Step() Result {
	out, err := e.Machine.Step()
	if err != nil {
		return Result{Reason: StopError, Err: err, Steps: 1}
	}
	if out.Halted {
		return Result{Reason: StopHalt, Steps: 1}
	}
	if !out.IsJSR {
		return Result{Reason: StopCount, Steps: 1}
	}

	target := out.RetAddr
	e.plantStepOverBreak(target)
	defer e.clearStepOverBreaks()

	steps := 1
	for {
		out, err := e.Machine.Step()
		steps++
		if err != nil {
			return Result{Reason: StopError, Err: err, Steps: steps}
		}
		if out.Halted {
			return Result{Reason: StopHalt, Steps: steps}
		}
		if e.Machine.Reg.PC == target && e.stepOverBreakAt(target) {
			return Result{Reason: StopCount, Steps: steps}
		}
		if e.userBreakAt(e.Machine.Reg.PC) {
			return Result{Reason: StopBreakpoint, Steps: steps}
		}
	}
}

// StepInto executes n instructions, stepping into calls, stopping early on
// a breakpoint or halt (§4.6's StepInto(n) mode).
func (e *Engine) StepInto(n int) Result {
	for i := 0; i < n; i++ {
		if e.userBreakAt(e.Machine.Reg.PC) && i > 0 {
			return Result{Reason: StopBreakpoint, Steps: i}
		}
		out, err := e.Machine.Step()
		if err != nil {
			return Result{Reason: StopError, Err: err, Steps: i + 1}
		}
		if out.Halted {
			return Result{Reason: StopHalt, Steps: i + 1}
		}
	}
	return Result{Reason: StopCount, Steps: n}
}

// StepOut runs until the current subroutine returns to its caller: it plants
// a temporary breakpoint at the return address recorded in R7 and continues
// until that address is reached, mirroring host/host.go's stepOver logic
// for a JSR encountered mid-run.
func (e *Engine) StepOut() Result {
	target := e.Machine.Reg.R[7]
	e.plantStepOverBreak(target)
	defer e.clearStepOverBreaks()

	steps := 0
	for {
		out, err := e.Machine.Step()
		steps++
		if err != nil {
			return Result{Reason: StopError, Err: err, Steps: steps}
		}
		if out.Halted {
			return Result{Reason: StopHalt, Steps: steps}
		}
		if e.Machine.Reg.PC == target && e.stepOverBreakAt(target) {
			return Result{Reason: StopReturn, Steps: steps}
		}
		if e.userBreakAt(e.Machine.Reg.PC) {
			return Result{Reason: StopBreakpoint, Steps: steps}
		}
	}
}

// Continue runs until a user breakpoint is hit, the machine halts, or a VM
// error occurs (§4.6's Continue mode). Continue plants no breakpoints of its
// own and does no call bookkeeping: it executes every instruction, including
// those inside called subroutines, and before each one after the first it
// stops if a user breakpoint is set at PC.
func (e *Engine) Continue() Result {
	steps := 0
	for {
		if steps > 0 && e.userBreakAt(e.Machine.Reg.PC) {
			return Result{Reason: StopBreakpoint, Steps: steps}
		}
		out, err := e.Machine.Step()
		steps++
		if err != nil {
			return Result{Reason: StopError, Err: err, Steps: steps}
		}
		if out.Halted {
			return Result{Reason: StopHalt, Steps: steps}
		}
	}
}
