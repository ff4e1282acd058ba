package parser

import (
	"testing"

	"github.com/beevik/lace/lexer"
)

func parse(t *testing.T, src string) []Item {
	t.Helper()
	toks, err := lexer.All(src)
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	items, err := ParseAll(toks, nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return items
}

func TestOrigEnd(t *testing.T) {
	items := parse(t, ".ORIG x3000\n.END\n")
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Kind != ItemOrig || items[0].Orig != 0x3000 {
		t.Errorf("item 0: %+v", items[0])
	}
	if items[1].Kind != ItemEnd {
		t.Errorf("item 1: %+v", items[1])
	}
}

func TestLabeledInstruction(t *testing.T) {
	items := parse(t, "LOOP ADD R1,R2,#3\n")
	if items[0].Label != "LOOP" {
		t.Errorf("got label %q, want LOOP", items[0].Label)
	}
	if items[0].Op != "ADD" || len(items[0].Operands) != 3 {
		t.Fatalf("got %+v", items[0])
	}
	if items[0].Operands[2].Kind != OperandInteger || items[0].Operands[2].Int != 3 {
		t.Errorf("third operand: %+v", items[0].Operands[2])
	}
}

func TestBranchWithLabel(t *testing.T) {
	items := parse(t, "BRzp DONE\n")
	if items[0].Op != "BRZP" {
		t.Errorf("got %q", items[0].Op)
	}
	if items[0].Operands[0].Kind != OperandLabel || items[0].Operands[0].Label != "DONE" {
		t.Errorf("operand: %+v", items[0].Operands[0])
	}
}

func TestMultipleLabelsIsError(t *testing.T) {
	toks, _ := lexer.All("A B HALT\n")
	_, err := ParseAll(toks, nil)
	if err == nil {
		t.Fatal("expected error for multiple labels")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Kind != MultipleLabels {
		t.Errorf("got %v, want MultipleLabels", err)
	}
}

func TestStringz(t *testing.T) {
	items := parse(t, `MSG .STRINGZ "Hi"` + "\n")
	if items[0].Kind != ItemDirective || items[0].Op != ".STRINGZ" {
		t.Fatalf("got %+v", items[0])
	}
	if items[0].Operands[0].Str != "Hi" {
		t.Errorf("got %q", items[0].Operands[0].Str)
	}
}

func TestBlkw(t *testing.T) {
	items := parse(t, ".BLKW 3\n")
	if items[0].Operands[0].Int != 3 {
		t.Errorf("got %+v", items[0])
	}
}

func TestBreakPseudoOp(t *testing.T) {
	items := parse(t, ".BREAK\n")
	if items[0].Kind != ItemBreak {
		t.Errorf("got %+v", items[0])
	}
}

func TestRegisterOperandTypeErrorIsParseError(t *testing.T) {
	toks, _ := lexer.All("ADD R1,R2,LABEL\n")
	_, err := ParseAll(toks, nil)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
