package vm

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/generin0/vasm/opcode"
)

func regOK(r byte) bool {
	return r < RegCount
}

func addrOK(a uint32) bool {
	return a < MemorySize
}

func (v *VM) fetchByte() byte {
	b := v.Memory[v.PC]
	v.PC++
	return b
}

// Step executes exactly one instruction. It is a no-op once Running
// is false.
func (v *VM) Step() {
	if !v.Running {
		return
	}
	if int(v.PC) >= MemorySize {
		v.Running = false
		return
	}

	op := opcode.Op(v.fetchByte())

	switch op {
	case opcode.Halt:
		v.Running = false

	case opcode.Nop:
		// nothing

	case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Xor, opcode.Or, opcode.And, opcode.Shl, opcode.Shr, opcode.Store:
		v.execRRR(op)

	case opcode.Addi, opcode.Xori, opcode.Ori, opcode.Shli, opcode.Shri:
		v.execRRImm8(op)

	case opcode.Mov:
		v.execMov()
	case opcode.Cmp:
		v.execCmp()
	case opcode.Cmpi:
		v.execCmpi()
	case opcode.Ldb:
		v.execLdb()
	case opcode.Load:
		v.execLoad()

	case opcode.Push:
		v.execPush()
	case opcode.Pop:
		v.execPop()

	case opcode.Storei:
		v.execStorei()

	case opcode.Print:
		v.execPrint()
	case opcode.Printc:
		v.execPrintc()
	case opcode.Prints:
		v.execPrints()
	case opcode.Read:
		v.execRead()
	case opcode.Readc:
		v.execReadc()
	case opcode.Reads:
		v.execReads()

	case opcode.Jmp, opcode.Je, opcode.Jne, opcode.Jg, opcode.Jge, opcode.Jl, opcode.Jle, opcode.Jnz:
		v.execBranch(op)
	case opcode.Call:
		v.execCall()
	case opcode.Ret:
		v.execRet()

	case opcode.Dbg:
		v.dump()

	default:
		v.Running = false
	}
}

// Run drains instructions until Running becomes false. The garbage
// collector is disabled for the duration of the hot fetch/decode/
// execute loop and restored to its prior percentage afterward; memory
// is allocated up front (registers, stack, 1024-byte image) and the
// loop itself allocates nothing, so collection during it is pure
// overhead.
func (v *VM) Run() {
	gcPercent := 100
	if val, ok := os.LookupEnv("GOGC"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			gcPercent = n
		}
	}
	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	for v.Running {
		v.Step()
	}
	v.Flush()
}

func (v *VM) execRRR(op opcode.Op) {
	rd, rs1, rs2 := v.fetchByte(), v.fetchByte(), v.fetchByte()
	if !regOK(rd) || !regOK(rs1) || !regOK(rs2) {
		return
	}
	a, b := v.Registers[rs1], v.Registers[rs2]

	switch op {
	case opcode.Add:
		result := int32(a) + int32(b)
		v.setFlags(result, a, b, opAdd)
		v.Registers[rd] = uint32(result)
	case opcode.Sub:
		result := int32(a) - int32(b)
		v.setFlags(result, a, b, opSub)
		v.Registers[rd] = uint32(result)
	case opcode.Mul:
		full := int64(int32(a)) * int64(int32(b))
		result := int32(full)
		v.setFlags(result, a, b, opMul)
		v.Registers[rd] = uint32(result)
	case opcode.Div:
		if b == 0 {
			v.Running = false
			return
		}
		result := int32(a) / int32(b)
		v.setFlags(result, a, b, opDiv)
		v.Registers[rd] = uint32(result)
	case opcode.And:
		result := int32(a & b)
		v.setFlags(result, a, b, opAnd)
		v.Registers[rd] = uint32(result)
	case opcode.Or:
		result := int32(a | b)
		v.setFlags(result, a, b, opOr)
		v.Registers[rd] = uint32(result)
	case opcode.Xor:
		result := int32(a ^ b)
		v.setFlags(result, a, b, opXor)
		v.Registers[rd] = uint32(result)
	case opcode.Shl:
		shift := b & 0x1F
		result := int32(a << shift)
		v.setFlags(result, a, b, opShl)
		v.Registers[rd] = uint32(result)
	case opcode.Shr:
		shift := b & 0x1F
		result := int32(a >> shift)
		v.setFlags(result, a, b, opShr)
		v.Registers[rd] = uint32(result)
	case opcode.Store:
		v.storeBigEndian(uint32(rs2), a)
	}
}

func (v *VM) execRRImm8(op opcode.Op) {
	rd, rs1, imm := v.fetchByte(), v.fetchByte(), v.fetchByte()
	if !regOK(rd) || !regOK(rs1) {
		return
	}
	a, b := v.Registers[rs1], uint32(imm)

	switch op {
	case opcode.Addi:
		result := int32(a) + int32(b)
		v.setFlags(result, a, b, opAdd)
		v.Registers[rd] = uint32(result)
	case opcode.Xori:
		result := int32(a ^ b)
		v.setFlags(result, a, b, opXor)
		v.Registers[rd] = uint32(result)
	case opcode.Ori:
		result := int32(a | b)
		v.setFlags(result, a, b, opOr)
		v.Registers[rd] = uint32(result)
	case opcode.Shli:
		shift := b & 0x1F
		result := int32(a << shift)
		v.setFlags(result, a, b, opShl)
		v.Registers[rd] = uint32(result)
	case opcode.Shri:
		shift := b & 0x1F
		result := int32(a >> shift)
		v.setFlags(result, a, b, opShr)
		v.Registers[rd] = uint32(result)
	}
}

func (v *VM) execMov() {
	rd, rs := v.fetchByte(), v.fetchByte()
	if !regOK(rd) || !regOK(rs) {
		return
	}
	value := v.Registers[rs]
	v.Registers[rd] = value
	v.setFlags(int32(value), value, 0, opMov)
}

func (v *VM) execCmp() {
	ra, rb := v.fetchByte(), v.fetchByte()
	if !regOK(ra) || !regOK(rb) {
		return
	}
	a, b := v.Registers[ra], v.Registers[rb]
	v.setFlags(int32(a)-int32(b), a, b, opSub)
}

func (v *VM) execCmpi() {
	ra, imm := v.fetchByte(), v.fetchByte()
	if !regOK(ra) {
		return
	}
	a, b := v.Registers[ra], uint32(imm)
	v.setFlags(int32(a)-int32(b), a, b, opSub)
}

func (v *VM) execLdb() {
	rd, rAddr := v.fetchByte(), v.fetchByte()
	if !regOK(rd) || !regOK(rAddr) {
		return
	}
	addr := v.Registers[rAddr]
	if !addrOK(addr) {
		return
	}
	value := uint32(v.Memory[addr])
	v.Registers[rd] = value
	v.setFlags(int32(value), value, 0, opLdb)
}

func (v *VM) execLoad() {
	rd, hi, lo := v.fetchByte(), v.fetchByte(), v.fetchByte()
	if !regOK(rd) {
		return
	}
	value := (uint32(hi) << 8) | uint32(lo)
	v.Registers[rd] = value
	v.setFlags(int32(value), value, 0, opLoad)
}

func (v *VM) execPush() {
	r := v.fetchByte()
	if !regOK(r) {
		return
	}
	if v.SP >= StackSize-1 {
		v.Running = false
		return
	}
	v.SP++
	v.Stack[v.SP] = int32(v.Registers[r])
}

func (v *VM) execPop() {
	r := v.fetchByte()
	if !regOK(r) {
		return
	}
	if v.SP < 0 {
		v.Running = false
		return
	}
	value := v.Stack[v.SP]
	v.SP--
	v.Registers[r] = uint32(value)
	v.setFlags(value, uint32(value), 0, opPop)
}

// storeBigEndian writes a 32-bit register value to memory starting at
// addr, most-significant byte first. The write is skipped entirely if
// it would run past the end of memory.
func (v *VM) storeBigEndian(addr uint32, value uint32) {
	if addr+3 >= MemorySize {
		return
	}
	v.Memory[addr] = byte(value >> 24)
	v.Memory[addr+1] = byte(value >> 16)
	v.Memory[addr+2] = byte(value >> 8)
	v.Memory[addr+3] = byte(value)
}

func (v *VM) execStorei() {
	r, imm := v.fetchByte(), v.fetchByte()
	if !regOK(r) {
		return
	}
	v.storeBigEndian(uint32(imm), v.Registers[r])
}

func (v *VM) execPrint() {
	r := v.fetchByte()
	if !regOK(r) {
		return
	}
	fmt.Fprintf(v.out, "%d", int32(v.Registers[r]))
}

func (v *VM) execPrintc() {
	r := v.fetchByte()
	if !regOK(r) {
		return
	}
	v.out.WriteByte(byte(v.Registers[r]))
}

func (v *VM) execPrints() {
	r := v.fetchByte()
	if !regOK(r) {
		return
	}
	addr := v.Registers[r]
	for addr < MemorySize && v.Memory[addr] != 0 {
		v.out.WriteByte(v.Memory[addr])
		addr++
	}
}

func (v *VM) execRead() {
	r := v.fetchByte()
	if !regOK(r) {
		return
	}
	var n int32
	fmt.Fscan(v.in, &n)
	v.Registers[r] = uint32(n)
}

func (v *VM) execReadc() {
	r := v.fetchByte()
	if !regOK(r) {
		return
	}
	c, _ := v.in.ReadByte()
	if c == '\n' {
		c, _ = v.in.ReadByte()
	}
	v.Registers[r] = uint32(c)
}

func (v *VM) execReads() {
	addr, maxLen := uint32(v.fetchByte()), uint32(v.fetchByte())
	if addr >= MemorySize || addr+maxLen >= MemorySize {
		return
	}
	line, _ := v.in.ReadString('\n')
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if uint32(len(line)) > maxLen {
		line = line[:maxLen]
	}
	i := uint32(0)
	for ; i < uint32(len(line)); i++ {
		v.Memory[addr+i] = line[i]
	}
	v.Memory[addr+i] = 0
}

func (v *VM) execBranch(op opcode.Op) {
	target := v.fetchByte()
	var taken bool
	switch op {
	case opcode.Jmp:
		taken = true
	case opcode.Je:
		taken = v.Flags.Zero
	case opcode.Jne, opcode.Jnz:
		taken = !v.Flags.Zero
	case opcode.Jg:
		taken = !v.Flags.Zero && v.Flags.Sign == v.Flags.Overflow
	case opcode.Jge:
		taken = v.Flags.Sign == v.Flags.Overflow
	case opcode.Jl:
		taken = v.Flags.Sign != v.Flags.Overflow
	case opcode.Jle:
		taken = v.Flags.Zero || v.Flags.Sign != v.Flags.Overflow
	}
	if taken {
		v.PC = uint16(target)
	}
}

func (v *VM) execCall() {
	target := v.fetchByte()
	if v.SP >= StackSize-1 {
		v.Running = false
		return
	}
	v.SP++
	v.Stack[v.SP] = int32(v.PC)
	v.PC = uint16(target)
}

func (v *VM) execRet() {
	if v.SP < 0 {
		v.Running = false
		return
	}
	v.PC = uint16(v.Stack[v.SP])
	v.SP--
}
