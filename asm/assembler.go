// Package asm implements the two-pass assembler: lexing, the label
// table, the data section builder, and the instruction encoder, all
// orchestrated by Assemble.
package asm

import "github.com/generin0/vasm/diag"

// initialDataStart is the provisional data-section base address used
// during pass 1, before the code section's true size is known.
const initialDataStart = 0x0100

// Assembler holds all state for one compilation of a source file into
// a bytecode image.
type Assembler struct {
	sink   *diag.Sink
	labels *LabelTable
	code   []byte
	data   *dataSection

	bytecodePos   uint16
	dataStartAddr uint16
	inDataSection bool
	lastNopLine   int
	pass          int
}

// Result is the output of a successful assembly.
type Result struct {
	Code   []byte // code section bytes
	Data   []byte // data section bytes
	Image  []byte // Code ++ Data, the final flat bytecode image
	Labels *LabelTable
}

// NewAssembler returns a fresh Assembler ready to compile one source.
func NewAssembler() *Assembler {
	return &Assembler{
		sink:        diag.NewSink(),
		labels:      NewLabelTable(),
		code:        make([]byte, 0, MaxBytecode),
		data:        newDataSection(),
		lastNopLine: -1,
	}
}

// Assemble runs both passes over source (already split into lines)
// and returns the resulting image and diagnostic sink. If the sink
// has any errors (or a fatal was hit), Result is the zero value.
func Assemble(source []string) (Result, *diag.Sink) {
	a := NewAssembler()
	a.dataStartAddr = initialDataStart

	a.runPass(source, 1)
	if a.sink.HasFatal() {
		return Result{}, a.sink
	}

	newStart := a.bytecodePos
	a.labels.RelocateData(initialDataStart, newStart)
	a.dataStartAddr = newStart

	a.bytecodePos = 0
	a.inDataSection = false
	a.lastNopLine = -1
	a.runPass(source, 2)
	if a.sink.HasFatal() || a.sink.HasErrors() {
		return Result{}, a.sink
	}

	image := make([]byte, 0, len(a.code)+len(a.data.buf))
	image = append(image, a.code...)
	image = append(image, a.data.buf...)

	return Result{
		Code:   a.code,
		Data:   a.data.buf,
		Image:  image,
		Labels: a.labels,
	}, a.sink
}

// runPass walks every source line once, routing to the data-section
// builder or the instruction encoder depending on the current
// section. It stops early if a fatal diagnostic has been recorded.
func (a *Assembler) runPass(source []string, pass int) {
	a.pass = pass
	for i, raw := range source {
		if a.sink.HasFatal() {
			return
		}
		lineNo := i + 1

		text := preprocess(raw)
		if text == "" {
			continue
		}

		if directive, ok := isDirective(text); ok {
			a.inDataSection = directive == ".data"
			continue
		}

		if a.inDataSection {
			if pass == 1 {
				a.parseDataLine(text, lineNo)
			}
			continue
		}

		ln, ok := lex(raw, lineNo)
		if !ok {
			continue
		}

		if ln.Label != "" && pass == 1 {
			a.labels.Add(a.sink, lineNo, ln.Label, a.bytecodePos, false)
		}

		if ln.Mnemonic == "" {
			continue
		}

		a.encodeInstruction(ln)
	}
}
