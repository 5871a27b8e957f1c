// Package disasm reconstructs a readable instruction listing from a
// raw bytecode image. It is a pure consumer of the opcode table: it
// never touches the assembler or VM packages' internals, only their
// exported byte-encoding knowledge, and does not attempt the ANSI
// coloring or paging a terminal-facing tool might add on top.
package disasm

import (
	"fmt"
	"io"

	"github.com/generin0/vasm/opcode"
)

// Fprint walks image from address 0, writing one line per decoded
// instruction to w. labels, if non-nil, maps an address to a name
// used to annotate addr16/R,addr16 operands; a nil map just prints
// the numeric address. Decoding stops at the first opcode byte that
// would read past the end of image, since a trailing data section has
// no instruction shape to decode against.
func Fprint(w io.Writer, image []byte, labels map[uint16]string) {
	addr := 0
	for addr < len(image) {
		start := addr
		op := opcode.Op(image[addr])
		addr++

		shape, known := opcode.ShapeOf(op)
		if !known {
			fmt.Fprintf(w, "%04X: .byte 0x%02X\n", start, byte(op))
			continue
		}

		need := shape.Len()
		if addr+need > len(image) {
			fmt.Fprintf(w, "%04X: %s <truncated>\n", start, op)
			return
		}
		operands := image[addr : addr+need]
		addr += need

		fmt.Fprintf(w, "%04X: %s\n", start, render(op, shape, operands, labels))
	}
}

func render(op opcode.Op, shape opcode.Shape, b []byte, labels map[uint16]string) string {
	switch shape {
	case opcode.ShapeNone:
		return op.String()
	case opcode.ShapeR:
		return fmt.Sprintf("%s R%d", op, b[0])
	case opcode.ShapeRR:
		return fmt.Sprintf("%s R%d,R%d", op, b[0], b[1])
	case opcode.ShapeRRR:
		return fmt.Sprintf("%s R%d,R%d,R%d", op, b[0], b[1], b[2])
	case opcode.ShapeRImm8:
		return fmt.Sprintf("%s R%d,%d", op, b[0], b[1])
	case opcode.ShapeRRImm8:
		return fmt.Sprintf("%s R%d,R%d,%d", op, b[0], b[1], b[2])
	case opcode.ShapeAddr16:
		addr := uint16(b[0])<<8 | uint16(b[1])
		return fmt.Sprintf("%s %s", op, addrLabel(addr, labels))
	case opcode.ShapeRAddr16:
		addr := uint16(b[1])<<8 | uint16(b[2])
		return fmt.Sprintf("%s R%d,%s", op, b[0], addrLabel(addr, labels))
	case opcode.ShapeAddr8Imm8:
		return fmt.Sprintf("%s %d,%d", op, b[0], b[1])
	default:
		return op.String()
	}
}

func addrLabel(addr uint16, labels map[uint16]string) string {
	if name, ok := labels[addr]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", addr)
}
