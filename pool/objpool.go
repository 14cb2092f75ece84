// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import (
	"sync"

	"github.com/momentics/unlimited-wait/api"
)

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool wraps sync.Pool for generic usage.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a new SyncPool with a creator function.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	sp.pool.Put(obj)
}

// defaultBatch is the capacity of freshly created completion buffers.
const defaultBatch = 16

// CompletionPool recycles the scratch buffers WaitMany retrieves into when
// the caller supplies none.
type CompletionPool struct {
	pool *SyncPool[*[]api.Completion]
}

// NewCompletionPool creates an empty CompletionPool.
func NewCompletionPool() *CompletionPool {
	return &CompletionPool{
		pool: NewSyncPool(func() *[]api.Completion {
			b := make([]api.Completion, defaultBatch)
			return &b
		}),
	}
}

// Get returns a buffer of length n.
func (cp *CompletionPool) Get(n int) *[]api.Completion {
	b := cp.pool.Get()
	if cap(*b) < n {
		*b = make([]api.Completion, n)
	}
	*b = (*b)[:n]
	return b
}

// Put returns a buffer obtained from Get.
func (cp *CompletionPool) Put(b *[]api.Completion) {
	if b == nil {
		return
	}
	clear(*b)
	cp.pool.Put(b)
}
