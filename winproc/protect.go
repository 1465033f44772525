// Package winproc is the OS-facing layer: page protection, memory-map
// queries and the scoped protection guard described by mywr's hook engine.
// Most of it is built on golang.org/x/sys/windows; the couple of kernel32
// entry points that package doesn't carry (FlushInstructionCache,
// GetSystemInfo — see icache.go) are bound directly with
// syscall.NewLazyDLL, the way the rest of this ecosystem talks to
// kernel32.
package winproc

import (
	"unsafe"

	"github.com/go-logr/logr"
	"golang.org/x/sys/windows"

	"github.com/themusaigen/mywr/internal/mlog"
)

// logger is the package-wide optional logr.Logger every winproc mutation
// reports through, mirroring the hook engine's own logger field — see
// SetLogger.
var logger = mlog.Default()

// SetLogger replaces the logger winproc reports page-protection mutations
// and query failures through. Call it once at process startup; winproc
// itself never requires a logger to function correctly.
func SetLogger(l logr.Logger) { logger = l }

// Protection is a bitset over the page-permission primitives the hook
// engine reasons about. It is intentionally coarser than the Windows
// PAGE_* constant space: several PAGE_* values collapse onto the same
// Protection (see FromNative), and each Protection maps to exactly one
// canonical PAGE_* constant (see ToNative).
type Protection uint32

const (
	// None means "no classification" — returned when a query failed.
	// It is distinct from NoAccess, which is a real page state.
	None Protection = 0

	NoAccess Protection = 1 << iota
	Read
	Write
	Execute
)

const (
	ReadWrite        = Read | Write
	ReadExecute      = Read | Execute
	ReadWriteExecute = Read | Write | Execute
)

// IsReadable, IsWriteable and IsExecutable test the corresponding bits.
func (p Protection) IsReadable() bool   { return p&Read != 0 }
func (p Protection) IsWriteable() bool  { return p&Write != 0 }
func (p Protection) IsExecutable() bool { return p&Execute != 0 }

// ToNative converts a Protection to its canonical Windows PAGE_* constant.
// NoAccess, Read, ReadWrite, Execute, ReadExecute and ReadWriteExecute each
// get a distinct constant and round-trip through FromNative. The kinds
// Windows has no constant for do not: None and any unlisted combination
// map to PAGE_NOACCESS, and Write alone maps to PAGE_READWRITE.
func (p Protection) ToNative() uint32 {
	switch p {
	case None, NoAccess:
		return windows.PAGE_NOACCESS
	case Read:
		return windows.PAGE_READONLY
	case Write, ReadWrite:
		return windows.PAGE_READWRITE
	case Execute:
		return windows.PAGE_EXECUTE
	case Read | Execute:
		return windows.PAGE_EXECUTE_READ
	case ReadWriteExecute:
		return windows.PAGE_EXECUTE_READWRITE
	default:
		return windows.PAGE_NOACCESS
	}
}

// FromNative converts a Windows PAGE_* constant to a Protection. Several
// PAGE_* constants collapse onto the same Protection (PAGE_WRITECOPY and
// PAGE_READWRITE both carry read+write semantics from a caller's point of
// view), which is why this direction is lossy for native constants.
func FromNative(native uint32) Protection {
	switch native &^ pageModifierMask {
	case windows.PAGE_NOACCESS:
		return NoAccess
	case windows.PAGE_READONLY:
		return Read
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return ReadWrite
	case windows.PAGE_EXECUTE:
		return Execute
	case windows.PAGE_EXECUTE_READ:
		return ReadExecute
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return ReadWriteExecute
	default:
		return None
	}
}

// pageModifierMask covers the PAGE_GUARD / PAGE_NOCACHE / PAGE_WRITECOMBINE
// bits, which modify a base protection constant but carry no information
// Protection cares about.
const pageModifierMask = windows.PAGE_GUARD | windows.PAGE_NOCACHE | windows.PAGE_WRITECOMBINE

// GetProtect returns the protection of the page containing addr, or None
// if the query failed.
func GetProtect(addr uintptr) Protection {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		logger.Error(err, "winproc: VirtualQuery failed", "addr", addr)
		return None
	}
	if mbi.State != windows.MEM_COMMIT {
		return None
	}
	return FromNative(mbi.Protect)
}

// SetProtect changes the protection of the page range [addr, addr+size)
// and returns the protection that was in effect before the change, or
// None on failure.
func SetProtect(addr uintptr, kind Protection, size uintptr) Protection {
	var old uint32
	if err := windows.VirtualProtect(addr, size, kind.ToNative(), &old); err != nil {
		logger.Error(err, "winproc: VirtualProtect failed", "addr", addr, "kind", kind, "size", size)
		return None
	}
	logger.V(1).Info("winproc: page protection changed", "addr", addr, "kind", kind, "size", size, "prior", FromNative(old))
	return FromNative(old)
}

// IsReadable, IsWriteable and IsExecutable of the page currently holding
// addr — convenience wrappers over GetProtect.
func IsReadable(addr uintptr) bool   { return GetProtect(addr).IsReadable() }
func IsWriteable(addr uintptr) bool  { return GetProtect(addr).IsWriteable() }
func IsExecutable(addr uintptr) bool { return GetProtect(addr).IsExecutable() }
