package asm

import "testing"

func assemble(t *testing.T, src string) (*Image, *SourceMap) {
	t.Helper()
	img, smap, err := Assemble(src, "test", 0, nil)
	if err != nil {
		t.Fatalf("assemble error: %v", err)
	}
	return img, smap
}

func expectWord(t *testing.T, img *Image, i int, want uint16) {
	t.Helper()
	if i >= len(img.Words) {
		t.Fatalf("word %d out of range (have %d)", i, len(img.Words))
	}
	if img.Words[i] != want {
		t.Errorf("word %d: got x%04X, want x%04X", i, img.Words[i], want)
	}
}

func TestScenarioAdd(t *testing.T) {
	img, _ := assemble(t, ".ORIG x3000\nADD R1,R2,#3\nHALT\n.END\n")
	if img.Origin != 0x3000 {
		t.Fatalf("origin = x%04X", img.Origin)
	}
	// ADD DR=1 SR1=2 imm5=3: 0001 001 010 1 00011
	expectWord(t, img, 0, 0x12A3)
	// TRAP HALT = 0xF025
	expectWord(t, img, 1, 0xF025)
}

func TestScenarioPuts(t *testing.T) {
	img, _ := assemble(t, `.ORIG x3000
LEA R0,MSG
PUTS
HALT
MSG .STRINGZ "Hi"
.END
`)
	// LEA R0 MSG: MSG is at x3000+3 = x3003; this instr addr=x3000, offset = 3003-3001 = 2
	expectWord(t, img, 0, uint16(0xE)<<12|uint16(2))
	if img.Symbols["MSG"] != 0x3003 {
		t.Errorf("MSG = x%04X, want x3003", img.Symbols["MSG"])
	}
	if len(img.Words) != 3+3 { // LEA, PUTS, HALT, 'H','i',0
		t.Fatalf("got %d words", len(img.Words))
	}
}

func TestScenarioOffsetOutOfRange(t *testing.T) {
	src := ".ORIG x3000\nBR LOOP\n"
	for i := 0; i < 299; i++ {
		src += "AND R0,R0,#0\n"
	}
	src += "LOOP HALT\n.END\n"

	_, _, err := Assemble(src, "test", 0, nil)
	if err == nil {
		t.Fatal("expected OffsetOutOfRange error")
	}
	asmErr, ok := err.(*Error)
	if !ok || asmErr.Kind != KindOffsetOutOfRange {
		t.Fatalf("got %v, want OffsetOutOfRange", err)
	}
	if asmErr.Have != 299 || asmErr.Min != -256 || asmErr.Max != 255 {
		t.Errorf("got have=%d min=%d max=%d, want have=299 min=-256 max=255", asmErr.Have, asmErr.Min, asmErr.Max)
	}
}

func TestScenarioBlkw(t *testing.T) {
	img, _ := assemble(t, ".ORIG x3000\n.BLKW 3\nHALT\n.END\n")
	if len(img.Words) != 4 {
		t.Fatalf("got %d words, want 4", len(img.Words))
	}
	for i := 0; i < 3; i++ {
		expectWord(t, img, i, 0)
	}
}

func TestDuplicateLabel(t *testing.T) {
	_, _, err := Assemble(".ORIG x3000\nA HALT\nA HALT\n.END\n", "test", 0, nil)
	if err == nil {
		t.Fatal("expected duplicate label error")
	}
	if asmErr, ok := err.(*Error); !ok || asmErr.Kind != KindDuplicateLabel {
		t.Errorf("got %v, want DuplicateLabel", err)
	}
}

func TestMissingOrig(t *testing.T) {
	_, _, err := Assemble("HALT\n.END\n", "test", 0, nil)
	if err == nil {
		t.Fatal("expected missing .ORIG error")
	}
	if asmErr, ok := err.(*Error); !ok || asmErr.Kind != KindMissingOrig {
		t.Errorf("got %v, want MissingOrig", err)
	}
}

func TestBreakPseudoOpRecordsBreakpointWithoutEmitting(t *testing.T) {
	img, _ := assemble(t, ".ORIG x3000\n.BREAK\nHALT\n.END\n")
	if len(img.Words) != 1 {
		t.Fatalf("got %d words, want 1 (.BREAK emits nothing)", len(img.Words))
	}
	if len(img.Breakpoints) != 1 || img.Breakpoints[0] != 0x3000 {
		t.Errorf("got breakpoints %v, want [x3000]", img.Breakpoints)
	}
}

func TestDeterministicAssembly(t *testing.T) {
	src := ".ORIG x3000\nADD R0,R0,#1\nHALT\n.END\n"
	img1, _ := assemble(t, src)
	img2, _ := assemble(t, src)
	if len(img1.Words) != len(img2.Words) {
		t.Fatal("non-deterministic word count")
	}
	for i := range img1.Words {
		if img1.Words[i] != img2.Words[i] {
			t.Errorf("word %d differs between runs", i)
		}
	}
}

func TestEvalAddImmediateWraps(t *testing.T) {
	// eval ADD R3,R3,#1 when R3 = x7FFF -> encode only; wraparound is a VM concern.
	word, err := AssembleInstruction("ADD R3,R3,#1", 0x3000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if word != 0x16E1 {
		t.Errorf("got x%04X, want x16E1", word)
	}
}

func TestEvalRejectsBranch(t *testing.T) {
	_, err := AssembleInstruction("BR LOOP", 0x3000, map[string]uint16{"LOOP": 0x3005})
	if err == nil {
		t.Fatal("expected eval to reject BR")
	}
}
