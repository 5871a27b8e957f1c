package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// dump renders a state snapshot for the DBG opcode, reproducing the
// layout of the original interpreter's debug print: PC/SP, flags, all
// general registers (hex and signed decimal), up to 8 stack entries,
// and a 12-byte memory window starting 4 bytes before PC.
func (v *VM) dump() {
	v.dumpTo(v.debugWriter())
}

// dumpTo writes the same state snapshot as dump, but to an explicit
// writer rather than the DBG opcode's configured sink; RunDebug uses
// this to print state to its own command-loop output.
func (v *VM) dumpTo(w io.Writer) {
	fmt.Fprintf(w, "PC=%04X SP=%d\n", v.PC, v.SP)
	fmt.Fprintf(w, "Z=%d S=%d C=%d O=%d\n",
		b2i(v.Flags.Zero), b2i(v.Flags.Sign), b2i(v.Flags.Carry), b2i(v.Flags.Overflow))

	for i, r := range v.Registers {
		fmt.Fprintf(w, "R%d=%08X (%d)\n", i, r, int32(r))
	}

	if v.SP < 0 {
		fmt.Fprintln(w, "stack: empty")
	} else {
		fmt.Fprint(w, "stack:")
		top := int(v.SP)
		count := top + 1
		if count > 8 {
			count = 8
		}
		for i := 0; i < count; i++ {
			fmt.Fprintf(w, " %d", v.Stack[top-i])
		}
		fmt.Fprintln(w)
	}

	start := int(v.PC) - 4
	if start < 0 {
		start = 0
	}
	end := start + 12
	if end > MemorySize {
		end = MemorySize
	}
	fmt.Fprintf(w, "mem[%04X:%04X]:", start, end)
	for i := start; i < end; i++ {
		fmt.Fprintf(w, " %02X", v.Memory[i])
	}
	fmt.Fprintln(w)
}

func (v *VM) debugWriter() io.Writer {
	if v.DebugOut != nil {
		return v.DebugOut
	}
	return v.out
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RunDebug drives the VM one instruction at a time under an
// interactive command loop: "n"/"next" (or a bare newline) executes
// one instruction, "r"/"run" free-runs to completion or the next
// breakpoint, and "b <addr>"/"break <addr>" toggles a breakpoint on a
// program-counter address. State is dumped to out after every step
// while waiting for input, and again whenever a breakpoint is hit.
func (v *VM) RunDebug(in io.Reader, out io.Writer) {
	defer v.Flush()

	fmt.Fprint(out, "Commands:\n\tn or next: execute next instruction\n\tr or run: run program\n\tb or break <addr>: break on address (or remove break)\n\n")
	v.dumpTo(out)

	reader := bufio.NewReader(in)
	breakpoints := make(map[uint16]struct{})
	waitForInput := true

	for v.Running {
		if !waitForInput {
			if _, ok := breakpoints[v.PC]; ok {
				fmt.Fprintln(out, "breakpoint")
				v.dumpTo(out)
				waitForInput = true
			} else {
				v.Step()
				continue
			}
		}

		fmt.Fprint(out, "\n-> ")
		line, _ := reader.ReadString('\n')
		line = strings.ToLower(strings.TrimSpace(line))

		switch {
		case line == "" || line == "n" || line == "next":
			v.Step()
			v.dumpTo(out)
		case line == "r" || line == "run":
			waitForInput = false
			if _, ok := breakpoints[v.PC]; ok {
				v.Step()
			}
		case strings.HasPrefix(line, "b"):
			toggleBreakpoint(breakpoints, line)
		}
	}
}

// toggleBreakpoint parses "b <addr>"/"break <addr>" and adds or
// removes addr from breakpoints: a second toggle on the same address
// clears it.
func toggleBreakpoint(breakpoints map[uint16]struct{}, line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	n, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return
	}
	addr := uint16(n)
	if _, ok := breakpoints[addr]; ok {
		delete(breakpoints, addr)
	} else {
		breakpoints[addr] = struct{}{}
	}
}
