// Package disasm decodes single x86/x86-64 instructions. It is the thinnest
// possible wrapper around golang.org/x/arch/x86/x86asm — the same decoder
// the teacher project (Dk2014-hinako) pulls in — widened to report the
// opcode byte, per-operand kind and absolute relative-branch targets the
// hook engine's trampoline rewriter needs.
package disasm

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/themusaigen/mywr/address"
)

// Mode is the processor mode a Decoder assumes: 32 or 64 (bits).
type Mode int

const (
	Mode32 Mode = 32
	Mode64 Mode = 64
)

// OperandKind classifies a single instruction operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandImmediate
	OperandRegister
	OperandMemory
	// OperandPointer marks a relative branch displacement (x86asm.Rel) —
	// an operand whose value is not useful on its own but resolves to an
	// absolute code address via Instruction.Abs.
	OperandPointer
)

// Decoder decodes instructions assuming a fixed processor mode, mirroring
// the source's "decoder initialized once per instance".
type Decoder struct {
	mode Mode
}

// New returns a Decoder for the given processor mode.
func New(mode Mode) *Decoder {
	return &Decoder{mode: mode}
}

// Instruction is a decoded single instruction, plus enough of its operand
// shape for the hook engine to classify and rewrite it.
type Instruction struct {
	Opcode       byte
	Length       int
	OperandCount int
	Operands     [4]OperandKind
	// IsRelativeImmediate is true if any operand is a relative branch
	// displacement (OperandPointer) — i.e. this instruction needs Abs to
	// learn its real target, and needs its displacement rewritten if it is
	// relocated, as the trampoline copier does for CALL/JMP.
	IsRelativeImmediate bool

	raw  []byte
	inst x86asm.Inst
}

// Disassemble decodes a single instruction from the bytes at addr. code
// must contain at least the bytes of the instruction (15 is always
// sufficient — x86's maximum instruction length). A Length of 0 on the
// returned Instruction means decoding failed; callers must treat that as
// fatal for hooking, never copy those bytes into a trampoline.
func (d *Decoder) Disassemble(addr address.Address, code []byte) Instruction {
	inst, err := x86asm.Decode(code, int(d.mode))
	if err != nil || inst.Len == 0 {
		return Instruction{}
	}

	out := Instruction{
		Length: inst.Len,
		raw:    code,
		inst:   inst,
	}
	if len(code) > 0 {
		out.Opcode = code[0]
	}
	for i, arg := range inst.Args {
		if arg == nil {
			break
		}
		out.OperandCount++
		switch arg.(type) {
		case x86asm.Imm:
			out.Operands[i] = OperandImmediate
		case x86asm.Reg:
			out.Operands[i] = OperandRegister
		case x86asm.Mem:
			out.Operands[i] = OperandMemory
		case x86asm.Rel:
			out.Operands[i] = OperandPointer
			out.IsRelativeImmediate = true
		}
	}
	return out
}

// IsImmediateOperand, IsRelativeOperand, IsMemoryOperand and
// IsRegisterOperand classify operand i, matching the external-interface
// accessor names spec.md §6 lists.
func (in Instruction) IsImmediateOperand(i int) bool { return in.operandKind(i) == OperandImmediate }
func (in Instruction) IsRelativeOperand(i int) bool  { return in.operandKind(i) == OperandPointer }
func (in Instruction) IsMemoryOperand(i int) bool    { return in.operandKind(i) == OperandMemory }
func (in Instruction) IsRegisterOperand(i int) bool  { return in.operandKind(i) == OperandRegister }

func (in Instruction) operandKind(i int) OperandKind {
	if i < 0 || i >= len(in.Operands) {
		return OperandNone
	}
	return in.Operands[i]
}

// HasRIPRelativeMemory reports whether any memory operand addresses
// relative to the instruction pointer (e.g. `lea rax, [rip+0x123]`). The
// trampoline copier cannot safely relocate these without rewriting the
// displacement against the new runtime address, which mywr does not
// implement (see the RIP-relative design note in SPEC_FULL.md) — hooking
// a prologue that contains one is refused rather than silently corrupted.
func (in Instruction) HasRIPRelativeMemory() bool {
	for _, arg := range in.inst.Args {
		if arg == nil {
			break
		}
		if mem, ok := arg.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			return true
		}
	}
	return false
}

// Imm32 returns operand i as a 32-bit immediate, for instructions whose
// opcode the hook engine already knows encode one (e.g. the rel32 of a
// CALL/JMP).
func (in Instruction) Imm32(i int) (int32, bool) {
	if i < 0 || i >= len(in.inst.Args) {
		return 0, false
	}
	switch v := in.inst.Args[i].(type) {
	case x86asm.Rel:
		return int32(v), true
	case x86asm.Imm:
		return int32(v), true
	default:
		return 0, false
	}
}

// Abs computes the absolute target of operand i, assuming this instruction
// was decoded at runtimeAddr. x86 relative branches encode their
// displacement from the address immediately following the instruction.
func (in Instruction) Abs(runtimeAddr address.Address, operandIndex int) address.Address {
	rel, ok := in.Imm32(operandIndex)
	if !ok {
		return address.Null
	}
	next := runtimeAddr.Add(uintptr(in.Length))
	if rel >= 0 {
		return next.Add(uintptr(rel))
	}
	return next.Sub(uintptr(-int64(rel)))
}

// GetAtLeastNBytes walks whole instructions from the bytes at addr,
// accumulating their lengths until the running total is >= minimal
// (5 by default — the size of a near JMP rel32), and returns that total.
// It returns 0 if decoding fails anywhere along the way, which the hook
// engine treats as NotEnoughSpace.
func (d *Decoder) GetAtLeastNBytes(addr address.Address, code []byte, minimal int) int {
	if minimal <= 0 {
		minimal = 5
	}
	total := 0
	cursor := addr
	remaining := code
	for total < minimal {
		if len(remaining) == 0 {
			return 0
		}
		inst := d.Disassemble(cursor, remaining)
		if inst.Length == 0 {
			return 0
		}
		total += inst.Length
		cursor = cursor.Add(uintptr(inst.Length))
		if inst.Length >= len(remaining) {
			remaining = nil
		} else {
			remaining = remaining[inst.Length:]
		}
	}
	return total
}
