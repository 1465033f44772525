package invoke

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themusaigen/mywr/address"
	"github.com/themusaigen/mywr/callconv"
)

// sum is exposed to the OS calling convention via syscall.NewCallback,
// the same trick the teacher project uses to get a native-callable address
// out of a Go function (Dk2014-hinako/hinako.go, NewHookByName).
func sum(a, b uintptr) uintptr {
	return a + b
}

func TestCallValueInvokesCallbackAddress(t *testing.T) {
	cbAddr := syscall.NewCallback(sum)
	require.NotZero(t, cbAddr)

	in := New(address.FromUintptr(cbAddr), callconv.New(callconv.Win64, 8, true, 2))
	got := CallValue[uintptr](in, 2, 3)
	assert.Equal(t, uintptr(5), got)
}

func TestTargetAndSignatureAccessors(t *testing.T) {
	sig := callconv.New(callconv.Win64, 4, true, 1)
	in := New(address.FromUintptr(0x1234), sig)
	assert.Equal(t, address.FromUintptr(0x1234), in.Target())
	assert.Equal(t, sig, in.Signature())
}
