package asm

import (
	"fmt"
	"strings"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func assembleOK(t *testing.T, source string) Result {
	lines := strings.Split(source, "\n")
	result, sink := Assemble(lines)
	assert(t, !sink.HasErrors(), "unexpected errors: %v", sink.Entries)
	return result
}

func TestAddiHalt(t *testing.T) {
	result := assembleOK(t, "ADDI R1,R1,1\nHALT")
	expected := []byte{0x02, 0x01, 0x01, 0x01, 0x00}
	assert(t, len(result.Image) == len(expected), "got %d bytes, want %d", len(result.Image), len(expected))
	for i, b := range expected {
		assert(t, result.Image[i] == b, "byte %d: got 0x%02X, want 0x%02X", i, result.Image[i], b)
	}
}

func TestForwardLabelReference(t *testing.T) {
	source := `
		JMP target
		HALT
	target:
		HALT
	`
	result := assembleOK(t, source)
	// JMP (1) + addr16 (2) + HALT (1) + HALT (1) = 5 bytes; target at offset 4.
	assert(t, result.Image[1] == 0x00 && result.Image[2] == 0x04, "label did not resolve to offset 4: %v", result.Image)
}

func TestDataLabelRelocation(t *testing.T) {
	source := `
		HALT
	.data
	greeting: "hi"
	`
	result := assembleOK(t, source)
	lbl, ok := result.Labels.Find("greeting")
	assert(t, ok, "expected label greeting to be registered")
	assert(t, lbl.Address == 1, "expected data label relocated to 1 (right after 1-byte code section), got %d", lbl.Address)
	assert(t, lbl.IsData, "expected greeting to be marked as a data label")
}

func TestBytecodePosAgreesBetweenPasses(t *testing.T) {
	source := "ADD R0,R1,R2\nSUB R0,R1,R2\nend: HALT"
	result := assembleOK(t, source)
	assert(t, len(result.Code) == 9, "expected 9 code bytes (4+4+1), got %d", len(result.Code))
	lbl, ok := result.Labels.Find("end")
	assert(t, ok && lbl.Address == 8, "expected pass-1 label end at 8 (the pass-2 offset of HALT), got %d", lbl.Address)
}

func TestImmediateBoundary(t *testing.T) {
	for _, v := range []string{"-128", "0", "255"} {
		assembleOK(t, fmt.Sprintf("CMPI R0,%s\nHALT", v))
	}
	for _, v := range []string{"-129", "256"} {
		lines := strings.Split(fmt.Sprintf("CMPI R0,%s\nHALT", v), "\n")
		_, sink := Assemble(lines)
		assert(t, sink.HasErrors(), "expected immediate %s to overflow", v)
	}
}

func TestUnknownInstruction(t *testing.T) {
	lines := strings.Split("FROB R0,R1\nHALT", "\n")
	_, sink := Assemble(lines)
	assert(t, sink.HasErrors(), "expected unknown instruction to raise an error")
}

func TestDuplicateLabelWarns(t *testing.T) {
	source := `
	start:
		NOP
	start:
		HALT
	`
	lines := strings.Split(source, "\n")
	_, sink := Assemble(lines)
	assert(t, sink.WarningCount > 0, "expected duplicate label warning")
	assert(t, !sink.HasErrors(), "duplicate label should warn, not error")
}

func TestBytecodeOverflowIsFatal(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("ADD R0,R1,R2\n")
	}
	lines := strings.Split(b.String(), "\n")
	result, sink := Assemble(lines)
	assert(t, sink.HasFatal(), "expected bytecode overflow to be fatal")
	assert(t, result.Image == nil, "expected no image on fatal overflow")
}

func TestLabelTableCapacity(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 257; i++ {
		fmt.Fprintf(&b, "l%d:\n", i)
	}
	b.WriteString("HALT\n")
	lines := strings.Split(b.String(), "\n")
	_, sink := Assemble(lines)
	assert(t, sink.HasFatal(), "expected the 257th label to be fatal")
}

func TestJumpOutOfRangeIsError(t *testing.T) {
	lines := strings.Split("JMP 2000\nHALT", "\n")
	_, sink := Assemble(lines)
	assert(t, sink.HasErrors(), "expected a jump target >= 1024 to raise JumpOutOfRange")
}

func TestLoadLabelOutOfRangeIsError(t *testing.T) {
	lines := strings.Split("LOAD R0,2000\nHALT", "\n")
	_, sink := Assemble(lines)
	assert(t, sink.HasErrors(), "expected a LOAD address >= 1024 to raise JumpOutOfRange")
}

func TestJumpToNextWarns(t *testing.T) {
	lines := strings.Split("JMP next\nnext: HALT", "\n")
	_, sink := Assemble(lines)
	assert(t, !sink.HasErrors(), "unexpected errors: %v", sink.Entries)
	assert(t, sink.WarningCount > 0, "expected a branch to the next instruction to warn")
}

func TestOperandInternalWhitespaceStripped(t *testing.T) {
	result := assembleOK(t, "ADDI R1, R 1 , 1\nHALT")
	expected := []byte{0x02, 0x01, 0x01, 0x01, 0x00}
	assert(t, len(result.Image) == len(expected), "got %d bytes, want %d", len(result.Image), len(expected))
	for i, b := range expected {
		assert(t, result.Image[i] == b, "byte %d: got 0x%02X, want 0x%02X", i, result.Image[i], b)
	}
}

func TestCompareAndBranchProgramAssembles(t *testing.T) {
	source := "MOV R0,R1\nCMP R0,R1\nJE there\nHALT\nthere:\nHALT"
	result := assembleOK(t, source)
	assert(t, len(result.Code) > 0, "expected non-empty code section")
}
