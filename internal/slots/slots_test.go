package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/unlimited-wait/api"
)

type reg struct{ id int }

func TestGrowShrink(t *testing.T) {
	var tb Table[reg]
	assert.Zero(t, tb.Len())
	_, ok := tb.FindFree()
	assert.False(t, ok)

	i := tb.Grow()
	assert.Equal(t, 0, i)
	_, ok = tb.FindFree()
	assert.False(t, ok, "slot without a packet is not free")

	tb.At(i).Packet = api.Packet(4)
	idx, ok := tb.FindFree()
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	tb.Grow()
	assert.Equal(t, 2, tb.Len())
	tb.Shrink()
	assert.Equal(t, 1, tb.Len())
	assert.Nil(t, tb.At(1))
	assert.Nil(t, tb.At(-1))
}

func TestAssignReleaseFind(t *testing.T) {
	var tb Table[reg]
	for range 3 {
		tb.At(tb.Grow()).Packet = api.Packet(8)
	}
	a, b := &reg{1}, &reg{2}
	tb.At(0).Assign(a)
	tb.At(2).Assign(b)
	assert.Equal(t, 2, tb.Count())

	idx, ok := tb.Find(func(r *reg) bool { return r.id == 2 })
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	_, ok = tb.Find(func(r *reg) bool { return r.id == 3 })
	assert.False(t, ok)

	free, ok := tb.FindFree()
	require.True(t, ok)
	assert.Equal(t, 1, free)

	assert.False(t, tb.At(0).Release(b), "release of another registration is refused")
	assert.True(t, tb.At(0).Release(a))
	assert.Nil(t, tb.At(0).Load())
}

func TestPendingBlocksReuse(t *testing.T) {
	var tb Table[reg]
	s := tb.At(tb.Grow())
	s.Packet = api.Packet(12)
	s.SetPending(true)
	assert.False(t, s.Free())
	_, ok := tb.FindFree()
	assert.False(t, ok)
	s.SetPending(false)
	assert.True(t, s.Free())
}

func TestDrain(t *testing.T) {
	var tb Table[reg]
	tb.Grow()
	tb.Grow()
	out := tb.Drain()
	assert.Len(t, out, 2)
	assert.Zero(t, tb.Len())
}
