// Package modinfo resolves a loaded module's base address and image size
// from within this process — the address-space lookups spec.md §6 lists
// as an external collaborator the hook engine's callers use to locate a
// target module before scanning or hooking into it. It wraps
// GetModuleHandle/LoadLibrary rather than parsing a PE file from disk,
// because the module of interest is already mapped into this process.
package modinfo

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/themusaigen/mywr/address"
)

// ErrNotFound is returned when the named module is not currently loaded
// and LoadLibrary fails to load it either.
var ErrNotFound = errors.New("modinfo: module not found")

// ErrBadImage is returned when a module's PE headers could not be read,
// most likely because handle does not actually point at a loaded image's
// base address.
var ErrBadImage = errors.New("modinfo: malformed PE image")

// Handle resolves name (e.g. "kernel32.dll", or "" for the running
// executable) to its loaded base address, loading it first if necessary.
func Handle(name string) (address.Address, error) {
	var namePtr *uint16
	if name != "" {
		p, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return address.Null, ErrNotFound
		}
		namePtr = p
	}

	var h windows.Handle
	if err := windows.GetModuleHandleEx(0, namePtr, &h); err == nil && h != 0 {
		return address.FromUintptr(uintptr(h)), nil
	}

	if name == "" {
		return address.Null, ErrNotFound
	}
	h2, err := windows.LoadLibrary(name)
	if err != nil {
		return address.Null, ErrNotFound
	}
	return address.FromUintptr(uintptr(h2)), nil
}

// dosHeader and ntHeaders mirror only the PE header fields Size needs:
// the e_lfanew offset, and OptionalHeader.SizeOfImage. They are read
// directly out of process memory already mapped at base, not parsed from
// a file — this process has the module loaded, so its own image is the
// authoritative source.
type dosHeader struct {
	magic  [60]byte
	lfanew int32
}

type ntHeaders64 struct {
	signature      uint32
	fileHeader     [20]byte
	magic          uint16
	_              [54]byte
	sizeOfImage    uint32
}

// Size returns the SizeOfImage field from the PE optional header of the
// module loaded at handle's base address.
func Size(handle address.Address) (uintptr, error) {
	if !handle.Valid() {
		return 0, ErrBadImage
	}
	dos := (*dosHeader)(unsafe.Pointer(handle.Uintptr()))
	if dos.lfanew <= 0 || dos.lfanew > 4096 {
		return 0, ErrBadImage
	}
	nt := (*ntHeaders64)(unsafe.Pointer(handle.Uintptr() + uintptr(dos.lfanew)))
	if nt.signature != 0x00004550 { // "PE\0\0"
		return 0, ErrBadImage
	}
	return uintptr(nt.sizeOfImage), nil
}

// Image returns a byte slice over the loaded module's full mapped image,
// for scan.FindPattern to search without the caller needing to compute the
// size itself.
func Image(handle address.Address) ([]byte, error) {
	size, err := Size(handle)
	if err != nil {
		return nil, err
	}
	return address.Bytes(handle, int(size)), nil
}
