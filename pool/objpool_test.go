package pool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/pool"
)

func TestCompletionPoolSizes(t *testing.T) {
	cp := pool.NewCompletionPool()

	b := cp.Get(4)
	assert.Len(t, *b, 4)
	(*b)[0] = api.Completion{Correlation: api.Correlation{Key: 1}}
	cp.Put(b)

	b = cp.Get(64)
	assert.Len(t, *b, 64)
	for _, c := range *b {
		assert.Zero(t, c)
	}
	cp.Put(b)
	cp.Put(nil)
}

func TestSyncPool(t *testing.T) {
	created := 0
	sp := pool.NewSyncPool(func() *int { created++; v := 0; return &v })
	v := sp.Get()
	*v = 7
	sp.Put(v)
	assert.NotNil(t, sp.Get())
	assert.GreaterOrEqual(t, created, 1)
}
