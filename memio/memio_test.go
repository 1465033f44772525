package memio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themusaigen/mywr/address"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	var v int64
	addr := address.Of(&v)

	require.NoError(t, Write(addr, int64(42), false))
	got, err := Read[int64](addr, false)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestCopyThenCompareIsZero(t *testing.T) {
	src := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	var dst [8]byte

	require.NoError(t, Copy(address.Of(&dst), address.Of(&src), 8, false))
	cmp, err := Compare(address.Of(&dst), address.Of(&src), 8)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

func TestFillWritesRepeatedByte(t *testing.T) {
	var buf [4]byte
	require.NoError(t, Fill(address.Of(&buf), 0xAB, 4, false))
	assert.Equal(t, [4]byte{0xAB, 0xAB, 0xAB, 0xAB}, buf)
}

func TestReadRejectsNullAddress(t *testing.T) {
	_, err := Read[int32](address.Null, false)
	require.Error(t, err)
	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, InvalidAddress, memErr.Kind)
}

func TestCompareRejectsZeroSize(t *testing.T) {
	var a, b int
	_, err := Compare(address.Of(&a), address.Of(&b), 0)
	require.Error(t, err)
	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, NullSize, memErr.Kind)
}
