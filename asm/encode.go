package asm

import (
	"strconv"
	"strings"

	"github.com/generin0/vasm/diag"
	"github.com/generin0/vasm/opcode"
)

const (
	// MaxBytecode mirrors the original assembler's fixed code buffer size.
	MaxBytecode = 1024
	// RegCount is the number of general-purpose registers.
	RegCount = 8
)

// parseRegister parses "R0".."R7" (case-insensitive), returning the
// register index.
func parseRegister(tok string) (byte, bool) {
	if len(tok) < 2 {
		return 0, false
	}
	if tok[0] != 'R' && tok[0] != 'r' {
		return 0, false
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 0 || n >= RegCount {
		return 0, false
	}
	return byte(n), true
}

// checkImmediate enforces the original assembler's asymmetric 8-bit
// union range: a byte value can come from a signed literal as low as
// -128 or an unsigned literal as high as 255.
func checkImmediate(v int64) (byte, bool) {
	if v < -128 || v > 255 {
		return 0, false
	}
	return byte(v), true
}

// resolveAddr resolves a label name or numeric literal to an absolute
// address, validating it lies within MaxBytecode+data bounds is the
// caller's job (addresses into data are legitimate after relocation).
func (a *Assembler) resolveAddr(tok string) (uint16, bool) {
	if lbl, ok := a.labels.Find(tok); ok {
		return lbl.Address, true
	}
	v, err := parseNumber(tok)
	if err != nil {
		return 0, false
	}
	if v < 0 || v >= 1<<16 {
		return 0, false
	}
	return uint16(v), true
}

// emitByte appends one byte to the code buffer during pass 2. During
// pass 1 it only advances bytecodePos, since pass 1 never writes code.
func (a *Assembler) emitByte(line int, b byte) {
	if a.bytecodePos >= MaxBytecode {
		a.sink.Push(diag.BytecodeOverflow, diag.Fatal, line, 0, "", "bytecode overflow (max %d bytes)", MaxBytecode)
		return
	}
	if a.pass == 2 {
		a.code = append(a.code, b)
	}
	a.bytecodePos++
}

// encodeInstruction sizes (pass 1) or validates and emits (pass 2) one
// instruction line. Pass 1 never reports operand errors: a forward
// label reference is only resolvable once labels have finished being
// collected, so only the opcode's fixed operand-byte count matters in
// pass 1.
func (a *Assembler) encodeInstruction(ln Line) {
	op, ok := opcode.Lookup(ln.Mnemonic)
	if !ok {
		if a.pass == 2 {
			a.sink.Push(diag.UnknownInstruction, diag.Error, ln.Number, 0, ln.Raw, "unknown instruction %q", ln.Mnemonic)
		}
		return
	}
	shape, _ := opcode.ShapeOf(op)

	if op == opcode.Nop {
		if a.pass == 2 && a.lastNopLine == ln.Number-1 {
			a.sink.Push(diag.NopSequence, diag.Warning, ln.Number, 0, ln.Raw, "consecutive NOPs")
		}
		a.lastNopLine = ln.Number
	}

	a.emitByte(ln.Number, byte(op))
	if a.pass == 1 {
		// Pass 1 only needs to advance bytecodePos by the shape length;
		// no operand parsing, no validation, no byte content.
		for i := 0; i < shape.Len(); i++ {
			a.bytecodePosOnly(ln.Number)
		}
		return
	}

	switch shape {
	case opcode.ShapeNone:
		// nothing to encode
	case opcode.ShapeR:
		a.encodeR(ln)
	case opcode.ShapeRR:
		a.encodeRR(ln)
	case opcode.ShapeRRR:
		a.encodeRRR(ln)
	case opcode.ShapeRImm8:
		a.encodeRImm8(ln)
	case opcode.ShapeRRImm8:
		a.encodeRRImm8(ln)
	case opcode.ShapeAddr16:
		a.encodeAddr16(ln, op)
	case opcode.ShapeRAddr16:
		a.encodeRAddr16(ln)
	case opcode.ShapeAddr8Imm8:
		a.encodeAddr8Imm8(ln)
	}
}

// bytecodePosOnly advances the position counter without touching the
// code buffer, used exclusively during pass 1.
func (a *Assembler) bytecodePosOnly(line int) {
	if a.bytecodePos >= MaxBytecode {
		a.sink.Push(diag.BytecodeOverflow, diag.Fatal, line, 0, "", "bytecode overflow (max %d bytes)", MaxBytecode)
		return
	}
	a.bytecodePos++
}

func (a *Assembler) wantRegister(ln Line, idx int) byte {
	tok := ln.Operands[idx]
	if tok == "" {
		a.sink.Push(diag.OperandMissing, diag.Error, ln.Number, 0, ln.Raw, "missing register operand")
		return 0
	}
	r, ok := parseRegister(tok)
	if !ok {
		a.sink.Push(diag.InvalidRegister, diag.Error, ln.Number, 0, ln.Raw, "invalid register operand %q", tok)
		return 0
	}
	return r
}

func (a *Assembler) wantImmediate(ln Line, idx int) byte {
	tok := ln.Operands[idx]
	if tok == "" {
		a.sink.Push(diag.OperandMissing, diag.Error, ln.Number, 0, ln.Raw, "missing immediate operand")
		return 0
	}
	v, err := parseNumber(tok)
	if err != nil {
		a.sink.Push(diag.InvalidOperand, diag.Error, ln.Number, 0, ln.Raw, "invalid immediate operand %q", tok)
		return 0
	}
	b, ok := checkImmediate(v)
	if !ok {
		a.sink.Push(diag.ImmediateOverflow, diag.Error, ln.Number, 0, ln.Raw, "immediate %q out of range [-128,255]", tok)
		return 0
	}
	return b
}

func (a *Assembler) encodeR(ln Line) {
	a.emitByte(ln.Number, a.wantRegister(ln, 0))
}

func (a *Assembler) encodeRR(ln Line) {
	a.emitByte(ln.Number, a.wantRegister(ln, 0))
	a.emitByte(ln.Number, a.wantRegister(ln, 1))
}

func (a *Assembler) encodeRRR(ln Line) {
	a.emitByte(ln.Number, a.wantRegister(ln, 0))
	a.emitByte(ln.Number, a.wantRegister(ln, 1))
	a.emitByte(ln.Number, a.wantRegister(ln, 2))
}

func (a *Assembler) encodeRImm8(ln Line) {
	a.emitByte(ln.Number, a.wantRegister(ln, 0))
	a.emitByte(ln.Number, a.wantImmediate(ln, 1))
}

func (a *Assembler) encodeRRImm8(ln Line) {
	a.emitByte(ln.Number, a.wantRegister(ln, 0))
	a.emitByte(ln.Number, a.wantRegister(ln, 1))
	a.emitByte(ln.Number, a.wantImmediate(ln, 2))
}

func (a *Assembler) encodeAddr16(ln Line, op opcode.Op) {
	tok := ln.Operands[0]
	addr, ok := a.resolveAddr(tok)
	if !ok {
		a.sink.Push(diag.LabelNotFound, diag.Error, ln.Number, 0, ln.Raw, "unresolved address operand %q", tok)
		a.emitByte(ln.Number, 0)
		a.emitByte(ln.Number, 0)
		return
	}
	if addr >= MaxBytecode {
		a.sink.Push(diag.JumpOutOfRange, diag.Error, ln.Number, 0, ln.Raw, "address %d out of range [0,%d)", addr, MaxBytecode)
		a.emitByte(ln.Number, 0)
		a.emitByte(ln.Number, 0)
		return
	}
	if op != opcode.Call && uint32(addr) == uint32(a.bytecodePos)+2 {
		a.sink.Push(diag.JumpToNext, diag.Warning, ln.Number, 0, ln.Raw, "branch to next instruction has no effect")
	}
	a.emitByte(ln.Number, byte(addr>>8))
	a.emitByte(ln.Number, byte(addr&0xFF))
}

func (a *Assembler) encodeRAddr16(ln Line) {
	a.emitByte(ln.Number, a.wantRegister(ln, 0))

	if strings.TrimSpace(ln.Operands[2]) == "" {
		// LOAD R, label
		addr, ok := a.resolveAddr(ln.Operands[1])
		if !ok {
			a.sink.Push(diag.LabelNotFound, diag.Error, ln.Number, 0, ln.Raw, "unresolved address operand %q", ln.Operands[1])
			a.emitByte(ln.Number, 0)
			a.emitByte(ln.Number, 0)
			return
		}
		if addr >= MaxBytecode {
			a.sink.Push(diag.JumpOutOfRange, diag.Error, ln.Number, 0, ln.Raw, "address %d out of range [0,%d)", addr, MaxBytecode)
			a.emitByte(ln.Number, 0)
			a.emitByte(ln.Number, 0)
			return
		}
		a.emitByte(ln.Number, byte(addr>>8))
		a.emitByte(ln.Number, byte(addr&0xFF))
		return
	}

	// LOAD R, high, low (two explicit immediate bytes)
	a.emitByte(ln.Number, a.wantImmediate(ln, 1))
	a.emitByte(ln.Number, a.wantImmediate(ln, 2))
}

func (a *Assembler) encodeAddr8Imm8(ln Line) {
	addr, ok := a.resolveAddr(ln.Operands[0])
	if !ok {
		a.sink.Push(diag.InvalidOperand, diag.Error, ln.Number, 0, ln.Raw, "invalid address operand %q", ln.Operands[0])
		a.emitByte(ln.Number, 0)
	} else if addr >= MaxBytecode+MaxDataSection {
		a.sink.Push(diag.JumpOutOfRange, diag.Error, ln.Number, 0, ln.Raw, "address %d out of range", addr)
		a.emitByte(ln.Number, 0)
	} else {
		a.emitByte(ln.Number, byte(addr))
	}
	a.emitByte(ln.Number, a.wantImmediate(ln, 1))
}
