package hook

import (
	"encoding/binary"

	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/disasm"
)

const absJmpLen = 14 // FF 25 00000000 + 8-byte absolute target

// emitAbsoluteJump returns a `jmp qword [rip+0]` followed inline by the
// 8-byte absolute address it reads — the indirect far jump x86-64 needs
// when the destination is farther than a rel32 can reach. The codecave's
// relay entry uses this instead of a near E9 because the relay address
// comes from syscall.NewCallback, which the Go runtime places whereever
// it likes — not necessarily within 2 GiB of a codecave planted close to
// the target by winproc.FindFreePage.
func emitAbsoluteJump(to uintptr) []byte {
	buf := make([]byte, absJmpLen)
	buf[0], buf[1] = 0xFF, 0x25
	binary.LittleEndian.PutUint32(buf[2:6], 0)
	binary.LittleEndian.PutUint64(buf[6:], uint64(to))
	return buf
}

// caveLayout is the byte-offset map of a built codecave, matching
// spec.md §4.4.2: a leading E9 over the trampoline, the trampoline body,
// then the relay entry.
type caveLayout struct {
	bytes          []byte
	trampolineOff  int
	relayOff       int
}

// buildCodecave emits the full codecave for a hook being freshly
// installed: a 5-byte near JMP over the trampoline, the trampoline body
// (original's first len(original) bytes, CALL/JMP-rewritten, then a JMP
// back to returnTo), and an absolute jump to relayAddr.
func buildCodecave(dec *disasm.Decoder, original []byte, originalAddr, caveAddr, returnTo address.Address, relayAddr uintptr) (caveLayout, error) {
	trampolineOff := nearLen
	tramp, err := buildTrampoline(dec, original, originalAddr, caveAddr.Add(uintptr(trampolineOff)), returnTo)
	if err != nil {
		return caveLayout{}, err
	}

	relayOff := trampolineOff + len(tramp)
	leadJmp := emitNearJmp(caveAddr, caveAddr.Add(uintptr(relayOff)))

	out := make([]byte, 0, relayOff+absJmpLen)
	out = append(out, leadJmp...)
	out = append(out, tramp...)
	out = append(out, emitAbsoluteJump(relayAddr)...)

	return caveLayout{bytes: out, trampolineOff: trampolineOff, relayOff: relayOff}, nil
}
