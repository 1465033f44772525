package winproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignDown(t *testing.T) {
	assert.Equal(t, uintptr(0x10000), alignDown(0x10fff, 0x10000))
	assert.Equal(t, uintptr(0x20000), alignDown(0x20000, 0x10000))
	assert.Equal(t, uintptr(0), alignDown(0xfff, 0x10000))
}
