//go:build windows

package modinfo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleResolvesKernel32(t *testing.T) {
	h, err := Handle("kernel32.dll")
	require.NoError(t, err)
	require.True(t, h.Valid())
}

func TestHandleResolvesOwnProcess(t *testing.T) {
	h, err := Handle("")
	require.NoError(t, err)
	require.True(t, h.Valid())
}

func TestSizeOfKernel32(t *testing.T) {
	h, err := Handle("kernel32.dll")
	require.NoError(t, err)

	size, err := Size(h)
	require.NoError(t, err)
	require.Greater(t, size, uintptr(0))
}

func TestHandleUnknownModuleFails(t *testing.T) {
	_, err := Handle("definitely-not-a-real-module.dll")
	require.ErrorIs(t, err, ErrNotFound)
}
