// Package invoke is the type-safe call surface spec.md §4.5 describes: a
// way to call a function at an arbitrary runtime address — the hook
// engine's trampoline entry, most commonly — with the target's real
// signature, the same role syscall.Proc.Call plays for the teacher's
// trampoline-disguised-as-a-Proc trick (Dk2014-hinako/hinako.go,
// NewHook's reflect hack on Proc.addr). mywr does the same job without
// the unsafe struct-field poke: callers hold an *Invoker directly.
package invoke

import (
	"syscall"

	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/callconv"
)

// Invoker calls a function stored at a fixed runtime address. On amd64
// the calling convention annotation carried on Signature is informational
// only — Windows has a single native calling convention (Win64) and the
// Go runtime's syscall.SyscallN already speaks it — matching spec.md
// §4.4.5 and §4.5's note that "on x86-64 the convention annotation is
// ignored by the generator".
type Invoker struct {
	target address.Address
	sig    callconv.Signature
}

// New returns an Invoker bound to target with the given signature.
func New(target address.Address, sig callconv.Signature) *Invoker {
	return &Invoker{target: target, sig: sig}
}

// Target returns the bound call address.
func (in *Invoker) Target() address.Address { return in.target }

// Signature returns the bound function signature.
func (in *Invoker) Signature() callconv.Signature { return in.sig }

// Call invokes the target with args forwarded exactly as given — the
// hidden-return-pointer argument, the thiscall `this` pointer, and so on
// are all just leading uintptr values the caller (typically package hook's
// relay) has already arranged in the right order for in.sig. lastErr is
// only meaningful for the handful of Windows APIs that set a thread-local
// error code on failure; for ordinary process-internal calls it is 0.
func (in *Invoker) Call(args ...uintptr) (r1, r2 uintptr, lastErr syscall.Errno) {
	return syscall.SyscallN(in.target.Uintptr(), args...)
}

// CallValue invokes the target and reinterprets its primary return
// register as a T. It is only meaningful for Ret types spec.md classifies
// as POD and word-sized-or-smaller (Signature.ReturnIsNonPOD() == false);
// larger or non-trivial returns come back through the hidden return
// pointer the caller passed in args, not through the function's return
// register, and must be read from that pointer instead.
func CallValue[T any](in *Invoker, args ...uintptr) T {
	r1, _, _ := in.Call(args...)
	return reinterpret[T](r1)
}
