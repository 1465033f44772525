package winproc

import (
	"syscall"
	"unsafe"
)

// kernel32 is hand-bound the way the teacher binds its own kernel32 calls
// (hinako.go) rather than through golang.org/x/sys/windows, because
// FlushInstructionCache and GetSystemInfo are plain forwarders over
// syscall.NewLazyDLL in that package too — there is no guarantee a given
// x/sys/windows release re-exports every kernel32 entry point, and these
// two are cheap enough to bind directly.
var (
	kernel32                  = syscall.NewLazyDLL("kernel32.dll")
	procFlushInstructionCache = kernel32.NewProc("FlushInstructionCache")
	procGetSystemInfo         = kernel32.NewProc("GetSystemInfo")
)

// currentProcessPseudoHandle is the well-known pseudo-handle Windows
// reserves for "the calling process" (GetCurrentProcess() always returns
// this constant rather than a real handle value).
const currentProcessPseudoHandle = ^uintptr(0)

// FlushInstructionCache flushes the instruction cache for [addr, addr+size)
// in the current process, so a CPU core that already fetched and cached
// the old bytes at addr sees a patch or freshly written trampoline instead
// of stale decoded instructions.
func FlushInstructionCache(addr uintptr, size uintptr) error {
	ret, _, err := procFlushInstructionCache.Call(currentProcessPseudoHandle, addr, size)
	if ret == 0 {
		return err
	}
	return nil
}

// systemInfo mirrors the fields of the Win32 SYSTEM_INFO struct this
// package reads. Only AllocationGranularity is consumed; the rest exist
// to keep the struct layout correct for GetSystemInfo's writeback.
type systemInfo struct {
	processorArchitecture     uint16
	reserved                  uint16
	pageSize                  uint32
	minimumApplicationAddress uintptr
	maximumApplicationAddress uintptr
	activeProcessorMask       uintptr
	numberOfProcessors        uint32
	processorType             uint32
	allocationGranularityRaw  uint32
	processorLevel            uint16
	processorRevision         uint16
}

func getSystemInfo() systemInfo {
	var si systemInfo
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))
	return si
}
