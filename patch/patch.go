// Package patch is the builder/apply/revert group spec.md §1 names as an
// external collaborator alongside the hook engine: a scope-bound byte
// replacement, distinct from a detour in that it never allocates a
// codecave or relay — it just overwrites and, on revert, restores.
// Grounded on the same winproc.ScopedProtect + memio read/write primitives
// the hook engine itself is built on.
package patch

import (
	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/memio"
	"github.com/themusaigen/mywr/winproc"
)

// write is one {address, newBytes} entry accumulated by a Builder.
type write struct {
	addr  address.Address
	bytes []byte
}

// Builder accumulates pending byte writes before they are applied together.
type Builder struct {
	writes []write
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Byte, Uint32 and Bytes queue a write of the given value(s) at addr,
// returning the Builder for chaining.
func (b *Builder) Byte(addr address.Address, v byte) *Builder {
	return b.Bytes(addr, []byte{v})
}

func (b *Builder) Uint32(addr address.Address, v uint32) *Builder {
	buf := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return b.Bytes(addr, buf)
}

func (b *Builder) Bytes(addr address.Address, v []byte) *Builder {
	cp := append([]byte(nil), v...)
	b.writes = append(b.writes, write{addr: addr, bytes: cp})
	return b
}

// snapshot is one applied write's restore record.
type snapshot struct {
	addr     address.Address
	original []byte
}

// Patch is a group of applied writes that can be reverted together.
type Patch struct {
	snapshots []snapshot
}

// Apply snapshots the original bytes at every queued address (via
// memio.Read-equivalent raw copy) before overwriting them, and returns a
// Patch whose Revert restores them in reverse order. If any write fails,
// Apply reverts everything already applied and returns the error.
func (b *Builder) Apply() (*Patch, error) {
	p := &Patch{}
	for _, w := range b.writes {
		orig := append([]byte(nil), address.Bytes(w.addr, len(w.bytes))...)

		if err := memio.Copy(w.addr, address.Of(&w.bytes[0]), uintptr(len(w.bytes)), true); err != nil {
			p.Revert()
			return nil, err
		}
		p.snapshots = append(p.snapshots, snapshot{addr: w.addr, original: orig})
	}
	return p, nil
}

// Revert restores every applied write's original bytes, in reverse
// application order, each under its own winproc.ScopedProtect. It is safe
// to call more than once; only unreverted snapshots have any effect.
func (p *Patch) Revert() {
	for i := len(p.snapshots) - 1; i >= 0; i-- {
		s := p.snapshots[i]
		guard := winproc.ScopedProtect(s.addr.Uintptr(), winproc.ReadWrite, uintptr(len(s.original)))
		if guard.Valid() {
			copy(address.Bytes(s.addr, len(s.original)), s.original)
			guard.Release()
		}
	}
	p.snapshots = nil
}
