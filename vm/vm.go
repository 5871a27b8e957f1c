// Package vm implements the register machine: 8 general registers, a
// 1024-byte linear memory, a 64-slot call/value stack, and an
// x86-like condition-flag model.
package vm

import (
	"bufio"
	"io"
	"os"
)

const (
	MemorySize = 1024
	RegCount   = 8
	StackSize  = 64
)

// Flags holds the four condition-code bits updated after arithmetic,
// logic, and data-movement instructions.
type Flags struct {
	Zero     bool
	Sign     bool
	Carry    bool
	Overflow bool
}

// VM is one machine instance: its memory, registers, stack, program
// counter, flags, and run state.
type VM struct {
	Memory    [MemorySize]byte
	Registers [RegCount]uint32
	Stack     [StackSize]int32
	SP        int8 // index of the top of stack, -1 when empty
	PC        uint16
	Flags     Flags
	Running   bool

	in  *bufio.Reader
	out *bufio.Writer

	// DebugOut, when non-nil, receives DBG-opcode snapshots instead of
	// the VM's output writer.
	DebugOut io.Writer
}

// New returns a VM with its registers, memory, and stack zeroed, ready
// to load a program.
func New() *VM {
	return &VM{
		SP:      -1,
		Running: true,
		in:      bufio.NewReader(os.Stdin),
		out:     bufio.NewWriter(os.Stdout),
	}
}

// NewWithIO returns a VM that reads from r and writes to w instead of
// the real stdio, for tests and embedding.
func NewWithIO(r io.Reader, w io.Writer) *VM {
	v := New()
	v.in = bufio.NewReader(r)
	v.out = bufio.NewWriter(w)
	return v
}

// Load copies a bytecode image into memory starting at address 0 and
// resets the program counter and run state. Bytes beyond MemorySize
// are silently truncated, matching the original loader's fread
// behavior against a fixed-size buffer.
func (v *VM) Load(image []byte) {
	for i := range v.Memory {
		v.Memory[i] = 0
	}
	copy(v.Memory[:], image)
	v.PC = 0
	v.Running = true
}

// Flush writes any buffered output. Callers should defer this after
// creating a VM with New or NewWithIO.
func (v *VM) Flush() {
	v.out.Flush()
}
