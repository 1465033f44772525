package hook

import (
	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/disasm"
)

// buildTrampoline copies the first len(original) bytes of the target
// function — decoded instruction by instruction from dec — into a new
// buffer meant to live at newAddr, rewriting any near CALL/JMP so its
// absolute destination is unchanged, and appends a final near JMP to
// returnTo (target + L, or the existing chain's entry when Install finds
// another hook already at the target). This is the trampoline body from
// spec.md §4.4.2 step 2.
//
// Any RIP-relative memory operand, or any relative branch other than a
// 5-byte near CALL/JMP (E8/E9 rel32), causes this to fail with
// NotEnoughSpace: this module
// picks "refuse" over "widen" for both open questions in §9, matching the
// teacher's own implicit behaviour of rejecting branches found inside the
// patch region (Dk2014-hinako/hinako.go, getAsmPatchSize/isBranchInst).
func buildTrampoline(dec *disasm.Decoder, original []byte, originalAddr, newAddr, returnTo address.Address) ([]byte, error) {
	out := make([]byte, 0, len(original)+nearLen)
	cursor := 0
	for cursor < len(original) {
		remaining := original[cursor:]
		instAddr := originalAddr.Add(uintptr(cursor))
		inst := dec.Disassemble(instAddr, remaining)
		if inst.Length == 0 {
			return nil, newErr(NotEnoughSpace)
		}
		if inst.HasRIPRelativeMemory() {
			return nil, newErr(NotEnoughSpace)
		}

		raw := remaining[:inst.Length]
		newInstAddr := newAddr.Add(uintptr(len(out)))

		if isNearBranch(inst.Opcode) && inst.Length == nearLen && inst.IsRelativeImmediate {
			dest := inst.Abs(instAddr, 0)
			if !dest.Valid() {
				return nil, newErr(NotEnoughSpace)
			}
			out = append(out, emitNearBranch(inst.Opcode, newInstAddr, dest)...)
		} else if inst.IsRelativeImmediate {
			// Any other relative branch in the prologue (a rel8 short jump,
			// a 0F 8x conditional jump, ...): widening or re-encoding it
			// could change the instruction's length and invalidate every
			// offset computed so far. Refuse rather than risk a torn
			// trampoline — see the "short jump in prologue" design note.
			return nil, newErr(NotEnoughSpace)
		} else {
			out = append(out, raw...)
		}
		cursor += inst.Length
	}

	tail := newAddr.Add(uintptr(len(out)))
	out = append(out, emitNearJmp(tail, returnTo)...)
	return out, nil
}
