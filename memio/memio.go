// Package memio provides protection-guarded, instruction-cache-correct
// read/write/copy/fill/compare over process memory. It generalizes the
// teacher's hand-rolled byte-at-a-time unsafeReadMemory/unsafeWriteMemory
// (Dk2014-hinako/hinako.go) into typed generic operations plus the
// fill/compare spec.md §6 also requires of this layer.
package memio

import (
	"bytes"

	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/winproc"
)

func flush(addr uintptr, size uintptr) {
	_ = winproc.FlushInstructionCache(addr, size)
}

// Read reads a T from addr. If unprotect is true, the page is temporarily
// made readable for the duration of the read.
func Read[T any](addr address.Address, unprotect bool) (T, error) {
	var zero T
	if !addr.Valid() {
		return zero, newErr(InvalidAddress)
	}
	size := uintptr(sizeOf[T]())
	if unprotect {
		g := winproc.ScopedProtect(addr.Uintptr(), winproc.ReadWriteExecute, size)
		if !g.Valid() {
			return zero, newErr(InvalidProtectChange)
		}
		defer g.Release()
	} else if !winproc.IsReadable(addr.Uintptr()) {
		return zero, newErr(UnreadableMemory)
	}
	return *address.Ptr[T](addr), nil
}

// Write writes v to addr. If unprotect is true, the page is temporarily
// made writable for the duration of the write. Either way the instruction
// cache for the written range is flushed afterwards (a no-op for
// non-executable ranges, cheap, and always correct).
func Write[T any](addr address.Address, v T, unprotect bool) error {
	if !addr.Valid() {
		return newErr(InvalidAddress)
	}
	size := uintptr(sizeOf[T]())
	if unprotect {
		g := winproc.ScopedProtect(addr.Uintptr(), winproc.ReadWriteExecute, size)
		if !g.Valid() {
			return newErr(InvalidProtectChange)
		}
		defer g.Release()
	} else if !winproc.IsWriteable(addr.Uintptr()) {
		return newErr(UnwriteableMemory)
	}
	*address.Ptr[T](addr) = v
	flush(addr.Uintptr(), size)
	return nil
}

// Copy copies size bytes from src to dst.
func Copy(dst, src address.Address, size uintptr, unprotect bool) error {
	if !dst.Valid() {
		return newErr(InvalidDestination)
	}
	if !src.Valid() {
		return newErr(InvalidSource)
	}
	if size == 0 {
		return newErr(NullSize)
	}
	if unprotect {
		g := winproc.ScopedProtect(dst.Uintptr(), winproc.ReadWriteExecute, size)
		if !g.Valid() {
			return newErr(InvalidProtectChange)
		}
		defer g.Release()
	}
	copy(address.Bytes(dst, int(size)), address.Bytes(src, int(size)))
	flush(dst.Uintptr(), size)
	return nil
}

// Fill writes size copies of b starting at dst.
func Fill(dst address.Address, b byte, size uintptr, unprotect bool) error {
	if !dst.Valid() {
		return newErr(InvalidDestination)
	}
	if size == 0 {
		return newErr(NullSize)
	}
	if unprotect {
		g := winproc.ScopedProtect(dst.Uintptr(), winproc.ReadWriteExecute, size)
		if !g.Valid() {
			return newErr(InvalidProtectChange)
		}
		defer g.Release()
	}
	buf := address.Bytes(dst, int(size))
	for i := range buf {
		buf[i] = b
	}
	flush(dst.Uintptr(), size)
	return nil
}

// Compare compares size bytes at a and b, returning 0 iff they are equal
// (mirroring bytes.Compare/memcmp semantics).
func Compare(a, b address.Address, size uintptr) (int, error) {
	if !a.Valid() {
		return 0, newErr(InvalidSource)
	}
	if !b.Valid() {
		return 0, newErr(InvalidDestination)
	}
	if size == 0 {
		return 0, newErr(NullSize)
	}
	return bytes.Compare(address.Bytes(a, int(size)), address.Bytes(b, int(size))), nil
}
