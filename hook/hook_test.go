//go:build windows

package hook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/callconv"
	"github.com/themusaigen/mywr/invoke"
	"github.com/themusaigen/mywr/memexec"
)

// newExecutable writes code into a fresh RWX page and returns its address.
// It is the test-only stand-in for "a real function already loaded in the
// process" every scenario in this file hooks.
func newExecutable(t *testing.T, code []byte) address.Address {
	t.Helper()
	addr, err := memexec.Allocate(uintptr(len(code)))
	require.NoError(t, err)
	copy(address.Bytes(addr, len(code)), code)
	return addr
}

// sumCode assembles `int sum(int a, int b) { return a + b; }` under the
// Win64 ABI (a in ECX, b in EDX, result in EAX): mov eax,ecx; add eax,edx; ret.
func sumCode() []byte {
	return []byte{0x89, 0xC8, 0x01, 0xD0, 0xC3}
}

func doublingCallback(h *Hook, args ...uintptr) uintptr {
	return h.Call(args...) * 2
}

func cdeclSumSig() callconv.Signature {
	return callconv.New(callconv.Cdecl, 4, true, 2)
}

// callSumDirect calls target(a, b) through package invoke, exactly the way
// spec.md §8's scenarios phrase it ("call sum(2,2)").
func callSumDirect(target address.Address, a, b uintptr) uintptr {
	inv := invoke.New(target, cdeclSumSig())
	return invoke.CallValue[uintptr](inv, a, b)
}

// Scenario 1 (spec.md §8.1): single hook doubling a cdecl sum.
func TestHook_SingleHookDoublesSum(t *testing.T) {
	target := newExecutable(t, sumCode())
	h := New(target, cdeclSumSig())
	h.Redirect(doublingCallback)

	require.NoError(t, h.Install())
	require.True(t, h.Installed())
	assertInstallInvariants(t, h)

	require.EqualValues(t, 8, callThrough(t, target))

	require.NoError(t, h.Remove())
	require.False(t, h.Installed())
	require.EqualValues(t, 4, callThrough(t, target))
}

// Scenario 2 (spec.md §8.2): two hooks, each doubling, the inner installed
// first and the outer on top of it, removed outer-first.
func TestHook_TwoHooksRemovedOuterFirst(t *testing.T) {
	target := newExecutable(t, sumCode())

	inner := New(target, cdeclSumSig())
	inner.Redirect(doublingCallback)
	require.NoError(t, inner.Install())

	outer := New(target, cdeclSumSig())
	outer.Redirect(doublingCallback)
	require.NoError(t, outer.Install())

	require.EqualValues(t, 16, callThrough(t, target))

	require.NoError(t, outer.Remove())
	require.EqualValues(t, 8, callThrough(t, target))

	require.NoError(t, inner.Remove())
	require.EqualValues(t, 4, callThrough(t, target))
}

// Scenario 3 (spec.md §8.3): two hooks removed inner-first, exercising the
// soft-remove path — H1's codecave stays allocated but transparent while
// H2's chain still runs through it.
func TestHook_TwoHooksRemovedInnerFirst(t *testing.T) {
	target := newExecutable(t, sumCode())

	h1 := New(target, cdeclSumSig())
	h1.Redirect(doublingCallback)
	require.NoError(t, h1.Install())

	h2 := New(target, cdeclSumSig())
	h2.Redirect(doublingCallback)
	require.NoError(t, h2.Install())

	require.NoError(t, h1.Remove())
	require.False(t, h1.Installed())
	require.EqualValues(t, 8, callThrough(t, target))

	require.NoError(t, h2.Remove())
	require.EqualValues(t, 4, callThrough(t, target))
}

// Universal invariants (spec.md §8): E9 at target[0], 0x90 padding through
// target[5..L], and a valid absolute destination.
func assertInstallInvariants(t *testing.T, h *Hook) {
	t.Helper()
	buf := address.Bytes(h.target, h.prologueLen)
	require.Equal(t, byte(0xE9), buf[0])
	for i := nearLen; i < h.prologueLen; i++ {
		require.Equal(t, byte(0x90), buf[i], "byte %d should be NOP padding", i)
	}
	inst := h.dec.Disassemble(h.target, buf)
	require.NotZero(t, inst.Length)
	dest := inst.Abs(h.target, 0)
	require.True(t, dest.Valid())
}

// Round-trip invariant: install() followed by remove() restores the exact
// bytes observed just before install().
func TestHook_RoundTripRestoresOriginalBytes(t *testing.T) {
	code := sumCode()
	target := newExecutable(t, code)
	before := append([]byte(nil), address.Bytes(target, len(code))...)

	h := New(target, cdeclSumSig())
	require.NoError(t, h.Install())
	require.NoError(t, h.Remove())

	after := address.Bytes(target, len(code))
	require.Equal(t, before, after)
}

func TestHook_InstallTwiceFails(t *testing.T) {
	target := newExecutable(t, sumCode())
	h := New(target, cdeclSumSig())
	require.NoError(t, h.Install())
	err := h.Install()
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	require.Equal(t, AlreadyInstalled, herr.Kind)
}

func TestHook_RemoveWithoutInstallFails(t *testing.T) {
	target := newExecutable(t, sumCode())
	h := New(target, cdeclSumSig())
	err := h.Remove()
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	require.Equal(t, AlreadyRemoved, herr.Kind)
}

func TestHook_CloseInstalledHookRemovesAndFreesCave(t *testing.T) {
	code := sumCode()
	target := newExecutable(t, code)
	before := append([]byte(nil), address.Bytes(target, len(code))...)

	h := New(target, cdeclSumSig())
	h.Redirect(doublingCallback)
	require.NoError(t, h.Install())
	require.EqualValues(t, 8, callThrough(t, target))

	require.NoError(t, h.Close())
	require.False(t, h.Installed())
	require.False(t, h.caveAddr.Valid())
	require.Equal(t, before, address.Bytes(target, len(code)))
	require.EqualValues(t, 4, callThrough(t, target))
}

// Closing hooks in reverse install order (LIFO, as Close's doc comment
// requires) always fully tears down even a chain: each Close hard-removes
// in turn, and no codecave is left allocated once both are closed.
func TestHook_CloseChainInReverseInstallOrderLeavesNoCaves(t *testing.T) {
	code := sumCode()
	target := newExecutable(t, code)
	before := append([]byte(nil), address.Bytes(target, len(code))...)

	inner := New(target, cdeclSumSig())
	inner.Redirect(doublingCallback)
	require.NoError(t, inner.Install())

	outer := New(target, cdeclSumSig())
	outer.Redirect(doublingCallback)
	require.NoError(t, outer.Install())

	require.NoError(t, outer.Close())
	require.False(t, outer.caveAddr.Valid())
	require.EqualValues(t, 8, callThrough(t, target))

	require.NoError(t, inner.Close())
	require.False(t, inner.caveAddr.Valid())
	require.Equal(t, before, address.Bytes(target, len(code)))
	require.EqualValues(t, 4, callThrough(t, target))
}

func TestHook_CloseNeverInstalledIsNoop(t *testing.T) {
	target := newExecutable(t, sumCode())
	h := New(target, cdeclSumSig())
	require.NoError(t, h.Close())
	require.False(t, h.Installed())
}

// callThrough calls the hooked (or unhooked) target with args (2,2), the
// shape every concrete scenario in spec.md §8 exercises.
func callThrough(t *testing.T, target address.Address) uintptr {
	t.Helper()
	return callSumDirect(target, 2, 2)
}
