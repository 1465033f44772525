package hook

import (
	"encoding/binary"

	"github.com/themusaigen/mywr/address"
)

const (
	opCall  byte = 0xE8
	opJmp   byte = 0xE9
	opNop   byte = 0x90
	nearLen      = 5 // opcode + rel32
)

// emitNearBranch returns the 5-byte encoding of opcode followed by the
// rel32 that makes a branch at from land exactly on to.
func emitNearBranch(opcode byte, from, to address.Address) []byte {
	rel := int32(to.Diff(from.Add(nearLen)))
	buf := make([]byte, nearLen)
	buf[0] = opcode
	binary.LittleEndian.PutUint32(buf[1:], uint32(rel))
	return buf
}

// emitNearJmp returns the bytes of an E9 rel32 jumping from codecave
// address from to destination to.
func emitNearJmp(from, to address.Address) []byte {
	return emitNearBranch(opJmp, from, to)
}

// isNearBranch reports whether opcode is one of the two relative-branch
// families the trampoline copier and the target-rewrite chain detector
// both know how to decode: near CALL (E8) and near JMP (E9). §4.4.1's
// prose names only E8 for "another hook already chained here", but
// §4.4.6 says the chain is discovered by "decoding what target's E8/E9
// pointed at" — this module resolves that inconsistency by treating
// either opcode as a chain marker (see DESIGN.md).
func isNearBranch(opcode byte) bool {
	return opcode == opCall || opcode == opJmp
}

func fillNop(b []byte) {
	for i := range b {
		b[i] = opNop
	}
}
