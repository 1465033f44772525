// Package address provides the machine-word-sized pointer value used
// throughout mywr. It never dereferences memory itself; it only carries
// and computes with the bits of a process address.
package address

import "unsafe"

// Address is a bit-exact reinterpretation of a process address, or zero.
type Address uintptr

// Null is the invalid, zero address.
const Null Address = 0

// Of returns the address of a concrete value.
func Of[T any](v *T) Address {
	return Address(uintptr(unsafe.Pointer(v)))
}

// FromUintptr builds an Address from a raw integer.
func FromUintptr(v uintptr) Address {
	return Address(v)
}

// Uintptr returns the raw integer value.
func (a Address) Uintptr() uintptr {
	return uintptr(a)
}

// Valid reports whether a is non-zero.
func (a Address) Valid() bool {
	return a != Null
}

// Add returns a+n.
func (a Address) Add(n uintptr) Address {
	return a + Address(n)
}

// Sub returns a-n.
func (a Address) Sub(n uintptr) Address {
	return a - Address(n)
}

// Diff returns a-b as a signed offset.
func (a Address) Diff(b Address) int64 {
	return int64(a) - int64(b)
}

// And, Or and Xor implement the bitwise algebra over the raw value.
func (a Address) And(n uintptr) Address { return a & Address(n) }
func (a Address) Or(n uintptr) Address  { return a | Address(n) }
func (a Address) Xor(n uintptr) Address { return a ^ Address(n) }

// Compare returns -1, 0 or 1 as a is less than, equal to, or greater than b.
func (a Address) Compare(b Address) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Ptr reinterprets a as a *T. Callers are responsible for T matching the
// memory actually found at a; this is the one place mywr trusts the caller.
func Ptr[T any](a Address) *T {
	return (*T)(unsafe.Pointer(a.Uintptr()))
}

// Bytes reads n bytes starting at a via direct pointer arithmetic, with no
// protection or bounds checking of its own — callers go through memio for
// anything that needs a protection guard.
func Bytes(a Address, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(a.Uintptr())), n)
}
