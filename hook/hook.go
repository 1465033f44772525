// Package hook implements mywr's detour-hook engine: install and remove
// in-process function hooks of arbitrary composition, routing execution
// through a user callback that may transparently call the original
// through a trampoline. It is grounded on the teacher project's NewHook/
// Close (Dk2014-hinako/hinako.go) but generalizes single-hook-per-target,
// no-composition detouring into the chained, soft/hard-removable engine
// spec.md §4.4 specifies.
package hook

import (
	"github.com/go-logr/logr"

	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/callconv"
	"github.com/themusaigen/mywr/disasm"
	"github.com/themusaigen/mywr/internal/mlog"
	"github.com/themusaigen/mywr/invoke"
	"github.com/themusaigen/mywr/memexec"
	"github.com/themusaigen/mywr/winproc"
)

// defaultCaveRange bounds how far winproc.FindFreePage searches for a
// codecave site near the target, matching the rel32 reach a trampoline's
// CALL/JMP rewrite relies on at install time (§4.4.5). The relay jump
// itself does not need this — it is an absolute indirect jump — but the
// trampoline's rewritten CALL/JMP operands do.
const defaultCaveRange = 0x7FFF0000

// probeLen is how many leading bytes Install reads from the target before
// decoding — comfortably more than any realistic prologue minimum needs
// (x86's longest instruction is 15 bytes).
const probeLen = 64

// Hook is a single, per-target detour. The zero value is not usable; use
// New. Hook is not safe for concurrent install/remove — see spec.md §5.
type Hook struct {
	target    address.Address
	sig       callconv.Signature
	dec       *disasm.Decoder
	minBytes  int
	logger    logr.Logger
	callback  Callback

	prologueLen   int
	caveAddr      address.Address
	caveSize      uintptr
	originalBytes []byte
	usercodeJump  []byte
	trampolineAddr address.Address
	relayAddr     uintptr
	lastArgs      []uintptr

	installed bool
}

// Option configures a Hook at construction time.
type Option func(*Hook)

// WithLogger attaches a logr.Logger that receives install/remove/error
// events. Without it the hook logs through mlog.Default (a stdr logger).
func WithLogger(l logr.Logger) Option {
	return func(h *Hook) { h.logger = l }
}

// WithMinimumPrologue overrides the minimum prologue byte count (5 by
// default, the size of a near JMP) GetAtLeastNBytes must satisfy.
func WithMinimumPrologue(n int) Option {
	return func(h *Hook) {
		if n > 0 {
			h.minBytes = n
		}
	}
}

// WithMode overrides the decoder's processor mode (Mode64 by default).
func WithMode(m disasm.Mode) Option {
	return func(h *Hook) { h.dec = disasm.New(m) }
}

// New builds a Hook for target with the given signature. Call Redirect to
// attach a callback before Install, or omit it to have Install wire the
// target straight through its own trampoline (a no-op hook).
func New(target address.Address, sig callconv.Signature, opts ...Option) *Hook {
	h := &Hook{
		target:   target,
		sig:      sig,
		dec:      disasm.New(disasm.Mode64),
		minBytes: nearLen,
		logger:   mlog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Target rebinds the hook to a new, not-yet-installed target address.
func (h *Hook) Target(addr address.Address) *Hook {
	h.target = addr
	return h
}

// Redirect attaches the user callback. Safe to call before Install or
// while removed; changing it while installed takes effect on the next
// call through the relay (the relay always reads h.callback live).
func (h *Hook) Redirect(cb Callback) *Hook {
	h.callback = cb
	return h
}

// Installed reports whether the hook is currently active.
func (h *Hook) Installed() bool { return h.installed }

// Callback returns the currently attached callback, or nil.
func (h *Hook) Callback() Callback { return h.callback }

// Context returns the raw argument values the relay most recently saw —
// the Go realization of spec.md §3's "hot-context scratch" register
// snapshot, since this implementation has no hand-rolled register-save
// stub to snapshot from.
//
// Context is a convenience outside spec.md's core surface, and it reads
// state the relay overwrites on every dispatch with no synchronization
// (see dispatch in relay.go). It is only meaningful when the hooked
// function is not invoked concurrently from more than one thread; under
// concurrent invocation the snapshot may belong to whichever call last
// wrote it, not necessarily the caller's own.
func (h *Hook) Context() []uintptr {
	out := make([]uintptr, len(h.lastArgs))
	copy(out, h.lastArgs)
	return out
}

// Call invokes the trampoline — the original function's prologue followed
// by a jump back into its unpatched body — with args forwarded as-is.
// This is what a callback calls to run "the original".
func (h *Hook) Call(args ...uintptr) uintptr {
	if !h.trampolineAddr.Valid() {
		return 0
	}
	inv := invoke.New(h.trampolineAddr, h.sig)
	return invoke.CallValue[uintptr](inv, args...)
}

// allocateCave reserves a page for this hook's codecave, preferring a
// free page near the target so the trampoline's CALL/JMP rewrites and the
// leading near JMP patched into the target itself stay within rel32 reach
// (spec.md §4.4.5). If no nearby page can be allocated it falls back to an
// OS-chosen address, which is not checked for rel32 reach.
func allocateCave(target address.Address, size uintptr) (address.Address, error) {
	if hint := winproc.FindFreePage(target.Uintptr(), defaultCaveRange); hint != 0 {
		if addr, err := memexec.AllocateAt(address.FromUintptr(hint), size); err == nil {
			return addr, nil
		}
	}
	return memexec.Allocate(size)
}

// flushRange flushes the instruction cache for [addr, addr+size) — required
// after writing machine code into a range the CPU may already have
// prefetched, on architectures where instruction and data caches are not
// coherent.
func flushRange(addr address.Address, size int) {
	_ = winproc.FlushInstructionCache(addr.Uintptr(), uintptr(size))
}

// Install patches the target to detour through a freshly built codecave,
// or — if this Hook was soft-removed and never hard-removed since — simply
// re-enables its existing codecave's relay entry. See spec.md §4.4.2 and
// §4.4.7 for the install/remove state machine this implements.
func (h *Hook) Install() error {
	if h.installed {
		h.logger.Error(nil, "install: already installed", "target", h.target)
		return newErr(AlreadyInstalled)
	}
	if !h.target.Valid() {
		h.logger.Error(nil, "install: invalid target address")
		return newErr(InvalidAddress)
	}
	if h.caveAddr.Valid() {
		return h.reinstall()
	}
	if !winproc.IsExecutable(h.target.Uintptr()) {
		h.logger.Error(nil, "install: target page not executable", "target", h.target)
		return newErr(NotExecutable)
	}

	probe := address.Bytes(h.target, probeLen)
	length := h.dec.GetAtLeastNBytes(h.target, probe, h.minBytes)
	if length == 0 {
		h.logger.Error(nil, "install: could not find a whole-instruction prologue", "target", h.target, "minimum", h.minBytes)
		return newErr(NotEnoughSpace)
	}
	original := append([]byte(nil), probe[:length]...)

	// Chain detection (§4.4.6): if another hook already occupies this
	// target, its E9/E8 tells us where the existing chain's entry point
	// is. Our trampoline returns there instead of into the original body,
	// so installing on top of an existing hook composes rather than
	// clobbers it.
	returnTo := h.target.Add(uintptr(length))
	if lead := h.dec.Disassemble(h.target, probe); lead.Length > 0 && isNearBranch(lead.Opcode) {
		if dest := lead.Abs(h.target, 0); dest.Valid() {
			returnTo = dest
		}
	}

	caveSize := uintptr(2*nearLen + length + absJmpLen)
	caveAddr, err := allocateCave(h.target, caveSize)
	if err != nil {
		h.logger.Error(err, "install: codecave allocation failed", "target", h.target, "size", caveSize)
		return newErrWrap(AllocateCodecave, err)
	}

	relayAddr := h.newRelay()
	layout, err := buildCodecave(h.dec, original, h.target, caveAddr, returnTo, relayAddr)
	if err != nil {
		_ = memexec.Deallocate(caveAddr, caveSize)
		h.logger.Error(err, "install: codecave layout build failed", "target", h.target)
		return err
	}
	copy(address.Bytes(caveAddr, len(layout.bytes)), layout.bytes)
	flushRange(caveAddr, len(layout.bytes))

	guard := winproc.ScopedProtect(h.target.Uintptr(), winproc.ReadWriteExecute, uintptr(length))
	if !guard.Valid() {
		_ = memexec.Deallocate(caveAddr, caveSize)
		h.logger.Error(nil, "install: target protection change failed", "target", h.target)
		return newErr(ProtectViolation)
	}
	buf := address.Bytes(h.target, length)
	copy(buf, emitNearJmp(h.target, caveAddr))
	fillNop(buf[nearLen:])
	guard.Release()
	flushRange(h.target, length)

	h.prologueLen = length
	h.originalBytes = original
	h.caveAddr = caveAddr
	h.caveSize = caveSize
	h.trampolineAddr = caveAddr.Add(uintptr(layout.trampolineOff))
	h.relayAddr = relayAddr
	h.usercodeJump = nil
	h.installed = true
	h.logger.V(1).Info("install: hook installed", "target", h.target, "prologueLen", length, "cave", caveAddr, "chained", returnTo != h.target.Add(uintptr(length)))
	return nil
}

// reinstall re-enables a codecave left allocated by a prior soft Remove:
// it restores the codecave's leading JMP to the relay, undoing the NOPs
// Remove wrote there. The target itself was never touched by a soft
// remove, so nothing needs patching there.
func (h *Hook) reinstall() error {
	if len(h.usercodeJump) != nearLen {
		h.logger.Error(nil, "reinstall: no usercode-jump snapshot to restore", "target", h.target)
		return newErr(ReinstallHook)
	}
	copy(address.Bytes(h.caveAddr, nearLen), h.usercodeJump)
	flushRange(h.caveAddr, nearLen)
	h.usercodeJump = nil
	h.installed = true
	h.logger.V(1).Info("reinstall: codecave relay re-enabled", "target", h.target, "cave", h.caveAddr)
	return nil
}

// Remove disables the hook. If this Hook's codecave is still the live
// entry point at target (nothing chained on top of it since), Remove is
// "hard": target's original bytes are fully restored and the codecave is
// freed. Otherwise another hook now owns target, and Remove is "soft": the
// target is left untouched and only this Hook's own codecave relay entry
// is NOPed out, so the chain that now runs through it falls straight into
// this Hook's trampoline instead of its relay — it stops calling back into
// this Hook's callback without breaking the chain around it.
func (h *Hook) Remove() error {
	if !h.installed {
		h.logger.Error(nil, "remove: already removed", "target", h.target)
		return newErr(AlreadyRemoved)
	}

	inst := h.dec.Disassemble(h.target, address.Bytes(h.target, h.prologueLen))
	if inst.Length == 0 || !isNearBranch(inst.Opcode) {
		h.logger.Error(nil, "remove: target prologue no longer decodes as a near branch", "target", h.target)
		return newErr(BackupRestoring)
	}
	destination := inst.Abs(h.target, 0)

	if destination == h.caveAddr || destination == h.trampolineAddr {
		return h.hardRemove()
	}
	return h.softRemove()
}

func (h *Hook) hardRemove() error {
	guard := winproc.ScopedProtect(h.target.Uintptr(), winproc.ReadWriteExecute, uintptr(h.prologueLen))
	if !guard.Valid() {
		h.logger.Error(nil, "remove: target protection change failed", "target", h.target)
		return newErr(ProtectViolation)
	}
	copy(address.Bytes(h.target, h.prologueLen), h.originalBytes)
	guard.Release()
	flushRange(h.target, h.prologueLen)

	if err := memexec.Deallocate(h.caveAddr, h.caveSize); err != nil {
		h.logger.Error(err, "remove: codecave deallocation failed", "cave", h.caveAddr)
		return newErrWrap(DeallocateCodecave, err)
	}

	h.caveAddr = address.Null
	h.caveSize = 0
	h.trampolineAddr = address.Null
	h.relayAddr = 0
	h.usercodeJump = nil
	h.installed = false
	h.logger.V(1).Info("remove: hard-removed, target bytes restored", "target", h.target)
	return nil
}

func (h *Hook) softRemove() error {
	h.usercodeJump = append([]byte(nil), address.Bytes(h.caveAddr, nearLen)...)
	fillNop(address.Bytes(h.caveAddr, nearLen))
	flushRange(h.caveAddr, nearLen)
	h.installed = false
	h.logger.V(1).Info("remove: soft-removed, codecave left transparent", "target", h.target, "cave", h.caveAddr)
	return nil
}

// Close tears a Hook down for good: it removes the hook if still
// installed, then frees any codecave this Hook still owns, including one
// left allocated by an earlier soft Remove (§4.4.7's soft path never
// deallocates, since another hook may still be chained through it). This
// is the Go realization of spec.md §3's "the destructor must remove if
// installed" — Go has no destructors, so callers invoke Close explicitly,
// the same way they call Release on a winproc.Guard or memexec.ScopedBlock.
// It mirrors the teacher's own Hook.Close (Dk2014-hinako/hinako.go), which
// reverts the patch and frees the trampoline unconditionally.
//
// Close hooks chained on the same target in the reverse of their install
// order (innermost last, outermost first) — the same order Remove already
// requires for a fully clean hard-remove cascade. Closing out of order,
// after a non-LIFO Remove has left a hook's codecave still reachable
// through another hook's restored jump, frees memory that is still live
// and will crash the target; Close does not attempt to detect this.
func (h *Hook) Close() error {
	if h.installed {
		if err := h.Remove(); err != nil {
			h.logger.Error(err, "close: remove failed", "target", h.target)
			return err
		}
	}
	if !h.caveAddr.Valid() {
		return nil
	}
	if err := memexec.Deallocate(h.caveAddr, h.caveSize); err != nil {
		h.logger.Error(err, "close: codecave deallocation failed", "cave", h.caveAddr)
		return newErrWrap(DeallocateCodecave, err)
	}
	h.logger.V(1).Info("close: codecave freed", "target", h.target, "cave", h.caveAddr)
	h.caveAddr = address.Null
	h.caveSize = 0
	h.trampolineAddr = address.Null
	h.relayAddr = 0
	h.usercodeJump = nil
	return nil
}
