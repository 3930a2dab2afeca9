package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type addr int32

func TestBits(t *testing.T) {
	s := MakeBitsCap[addr](1000, 10)

	assert.False(t, s.IsSet(1000))
	assert.False(t, s.IsSet(5))

	s.Set(1000)
	s.Set(1065)
	s.Set(1300)

	assert.True(t, s.IsSet(1000))
	assert.True(t, s.IsSet(1065))
	assert.True(t, s.IsSet(1300))
	assert.False(t, s.IsSet(1001))
	assert.Equal(t, 3, s.Size())

	var l []addr
	s.Range(func(k addr) bool {
		l = append(l, k)
		return true
	})

	assert.Equal(t, []addr{1000, 1065, 1300}, l)

	s.Clear(1065)
	assert.False(t, s.IsSet(1065))

	s.Reset()
	assert.Equal(t, 0, s.Size())
	assert.False(t, s.IsSet(1000))

	assert.Panics(t, func() { s.Set(999) })
}

func TestBitmap(t *testing.T) {
	var s Bitmap

	assert.Equal(t, 0, s.Len())

	s.Set(3)
	s.Set(130)

	assert.True(t, s.IsSet(3))
	assert.False(t, s.IsSet(4))
	assert.Equal(t, 2, s.Size())
	assert.Equal(t, 131, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Size())
}
