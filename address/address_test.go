package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	assert.False(t, Null.Valid())
	assert.True(t, FromUintptr(1).Valid())
}

func TestArithmetic(t *testing.T) {
	a := FromUintptr(0x1000)
	assert.Equal(t, FromUintptr(0x1010), a.Add(0x10))
	assert.Equal(t, FromUintptr(0x0ff0), a.Sub(0x10))
	assert.Equal(t, int64(0x10), a.Add(0x10).Diff(a))
}

func TestCompare(t *testing.T) {
	a, b := FromUintptr(1), FromUintptr(2)
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestOf(t *testing.T) {
	v := 42
	a := Of(&v)
	assert.True(t, a.Valid())
	assert.Equal(t, 42, *Ptr[int](a))
}
