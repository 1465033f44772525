package memexec

import "github.com/themusaigen/mywr/address"

// ScopedBlock is an owning guard over an executable allocation: it
// allocates on construction and must be explicitly Released, mirroring the
// source's RAII scoped_memory_block without relying on a finalizer for
// correctness.
type ScopedBlock struct {
	addr address.Address
	size uintptr
	err  error
}

// NewScopedBlock allocates size bytes of executable memory and wraps them
// in a ScopedBlock. Check Allocated/Error before using Get.
func NewScopedBlock(size uintptr) *ScopedBlock {
	addr, err := Allocate(size)
	return &ScopedBlock{addr: addr, size: size, err: err}
}

// Get returns the block's base address, or address.Null if allocation
// failed.
func (b *ScopedBlock) Get() address.Address { return b.addr }

// Size returns the requested block size.
func (b *ScopedBlock) Size() uintptr { return b.size }

// Allocated reports whether the underlying allocation succeeded.
func (b *ScopedBlock) Allocated() bool { return b.err == nil && b.addr.Valid() }

// Error returns the allocation error, if any.
func (b *ScopedBlock) Error() error { return b.err }

// Release deallocates the block. Safe to call more than once.
func (b *ScopedBlock) Release() {
	if !b.Allocated() {
		return
	}
	_ = Deallocate(b.addr, b.size)
	b.addr = address.Null
	b.err = nil
}
