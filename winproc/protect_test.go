package winproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/windows"
)

func TestProtectionBits(t *testing.T) {
	assert.True(t, ReadWrite.IsReadable())
	assert.True(t, ReadWrite.IsWriteable())
	assert.False(t, ReadWrite.IsExecutable())
	assert.True(t, ReadWriteExecute.IsExecutable())
}

func TestRoundTripThroughNative(t *testing.T) {
	for _, kind := range []Protection{NoAccess, Read, ReadWrite, Execute, ReadExecute, ReadWriteExecute} {
		native := kind.ToNative()
		assert.Equal(t, kind, FromNative(native), "round-trip for %v via native %#x", kind, native)
	}
}

func TestFromNativeCollapsesWriteCopy(t *testing.T) {
	assert.Equal(t, ReadWrite, FromNative(windows.PAGE_WRITECOPY))
	assert.Equal(t, ReadWriteExecute, FromNative(windows.PAGE_EXECUTE_WRITECOPY))
}

func TestFromNativeStripsModifierBits(t *testing.T) {
	assert.Equal(t, ReadWrite, FromNative(windows.PAGE_READWRITE|windows.PAGE_GUARD))
}

func TestFromNativeUnknownIsNone(t *testing.T) {
	assert.Equal(t, None, FromNative(0xdead0000))
}
