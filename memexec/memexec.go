// Package memexec allocates and frees read-write-execute pages for
// codecaves, trampolines and other generated machine code, and exposes a
// scoped allocation guard, ScopedBlock. The hook engine allocates its
// codecaves with Allocate/AllocateAt directly.
package memexec

import (
	"errors"

	"github.com/go-logr/logr"
	"golang.org/x/sys/windows"

	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/internal/mlog"
	"github.com/themusaigen/mywr/winproc"
)

// ErrAllocate is returned when the OS refuses to commit the requested
// pages, at any address.
var ErrAllocate = errors.New("memexec: VirtualAlloc failed")

// ErrDeallocate is returned when VirtualFree fails to release a block this
// package believes it owns.
var ErrDeallocate = errors.New("memexec: VirtualFree failed")

// logger is the package-wide optional logr.Logger memexec reports
// allocate/deallocate activity through, mirroring winproc.SetLogger.
var logger = mlog.Default()

// SetLogger replaces the logger memexec reports allocation activity and
// failures through. memexec never requires a logger to function correctly.
func SetLogger(l logr.Logger) { logger = l }

// Allocate reserves and commits size bytes of ReadWriteExecute memory at
// an OS-chosen address.
func Allocate(size uintptr) (address.Address, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, winproc.ReadWriteExecute.ToNative())
	if err != nil || addr == 0 {
		logger.Error(err, "memexec: VirtualAlloc failed", "size", size)
		return address.Null, ErrAllocate
	}
	logger.V(1).Info("memexec: allocated executable block", "addr", addr, "size", size)
	return address.FromUintptr(addr), nil
}

// AllocateAt commits size bytes of ReadWriteExecute memory at the specific
// base hint, which must already be free and granularity-aligned (typically
// the result of winproc.FindFreePage). It fails rather than silently
// falling back to an OS-chosen address, because the hook engine only calls
// it when the codecave must land within a bounded displacement of a
// target address.
func AllocateAt(hint address.Address, size uintptr) (address.Address, error) {
	if !hint.Valid() {
		return address.Null, ErrAllocate
	}
	addr, err := windows.VirtualAlloc(hint.Uintptr(), size, windows.MEM_COMMIT|windows.MEM_RESERVE, winproc.ReadWriteExecute.ToNative())
	if err != nil || addr == 0 {
		logger.Error(err, "memexec: hinted VirtualAlloc failed", "hint", hint, "size", size)
		return address.Null, ErrAllocate
	}
	logger.V(1).Info("memexec: allocated executable block at hint", "addr", addr, "hint", hint, "size", size)
	return address.FromUintptr(addr), nil
}

// Deallocate releases a block obtained from Allocate or AllocateAt. size is
// accepted for symmetry with the spec's external interface but Windows
// requires a full-region release, so it is ignored; only addr is checked
// (a Null addr fails with ErrDeallocate).
func Deallocate(addr address.Address, size uintptr) error {
	if !addr.Valid() {
		return ErrDeallocate
	}
	if err := windows.VirtualFree(addr.Uintptr(), 0, windows.MEM_RELEASE); err != nil {
		logger.Error(err, "memexec: VirtualFree failed", "addr", addr)
		return ErrDeallocate
	}
	logger.V(1).Info("memexec: deallocated executable block", "addr", addr)
	return nil
}
