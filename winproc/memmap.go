package winproc

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func queryState(addr uintptr) (uint32, bool) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return 0, false
	}
	return mbi.State, true
}

// IsPageFree reports whether the page containing addr is unmapped.
func IsPageFree(addr uintptr) bool {
	state, ok := queryState(addr)
	return ok && state == windows.MEM_FREE
}

// IsPageOccupied reports whether the page containing addr is committed.
func IsPageOccupied(addr uintptr) bool {
	state, ok := queryState(addr)
	return ok && state == windows.MEM_COMMIT
}

// IsPageReserved reports whether the page containing addr is reserved but
// not committed.
func IsPageReserved(addr uintptr) bool {
	state, ok := queryState(addr)
	return ok && state == windows.MEM_RESERVE
}

// allocationGranularity queries the OS allocation granularity (typically
// 64 KiB on Windows) that free-page candidates must align to, falling back
// to 64 KiB if the query reports zero.
func allocationGranularity() uintptr {
	si := getSystemInfo()
	if si.allocationGranularityRaw == 0 {
		return 0x10000
	}
	return uintptr(si.allocationGranularityRaw)
}

// alignDown rounds addr down to the given granularity.
func alignDown(addr, granularity uintptr) uintptr {
	return addr - (addr % granularity)
}

// FindFreePage searches for a free, granularity-aligned page within
// [hint-rng, hint+rng], scanning backwards from the hint first and then
// forwards, returning the first candidate found or 0. Backward candidates
// are preferred because an executable allocation placed below the target
// is still reachable by a 32-bit rel32 relative branch from above it —
// the property the hook engine's codecaves depend on at 64-bit addresses.
func FindFreePage(hint uintptr, rng uintptr) uintptr {
	gran := allocationGranularity()
	base := alignDown(hint, gran)

	var lowBound uintptr
	if hint > rng {
		lowBound = alignDown(hint-rng, gran)
	}
	highBound := hint + rng

	for cur := base; cur >= lowBound && cur <= hint; cur -= gran {
		if candidateFree(cur, gran) {
			return cur
		}
		if cur < gran {
			break
		}
	}
	for cur := base + gran; cur <= highBound; cur += gran {
		if candidateFree(cur, gran) {
			return cur
		}
	}
	return 0
}

// candidateFree reports whether the whole allocation-granularity-sized
// block starting at addr is free, the precondition VirtualAlloc imposes on
// a hinted allocation.
func candidateFree(addr, size uintptr) bool {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return false
	}
	return mbi.State == windows.MEM_FREE && mbi.RegionSize >= size
}
