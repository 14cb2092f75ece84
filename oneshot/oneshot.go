// File: oneshot/oneshot.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package oneshot waits for the first of any number of kernel objects to
// become signalled, without the native 64-object ceiling. Each call builds
// a private completion queue and one wait packet per object and tears them
// down before returning.
package oneshot

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
)

// Waiter performs one-shot waits on a platform. It is safe for concurrent
// use; calls share nothing but the shift counter.
type Waiter struct {
	platform api.Platform
	counter  atomic.Uint64
	clock    func() time.Time
	log      zerolog.Logger
	metrics  *control.MetricsRegistry
}

// Option customizes a Waiter.
type Option func(*Waiter)

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Waiter) { w.log = l }
}

// WithMetrics enables the oneshot counters in mr.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(w *Waiter) { w.metrics = mr }
}

// WithClock replaces the clock that seeds the association order.
func WithClock(fn func() time.Time) Option {
	return func(w *Waiter) { w.clock = fn }
}

// NewWaiter creates a Waiter on platform p.
func NewWaiter(p api.Platform, opts ...Option) *Waiter {
	w := &Waiter{
		platform: p,
		clock:    time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// shift picks the rotation applied to the association order so that no
// position is favoured when several objects are already signalled.
func (w *Waiter) shift(n int) int {
	src := rand.NewPCG(uint64(w.clock().UnixMilli()), w.counter.Add(1))
	return rand.New(src).IntN(n)
}

// WaitFirst blocks until one of objects is signalled and returns its index
// in objects. An object found signalled while packets are being associated
// is reported at once. Timeouts and alerts are reported as api.ErrTimeout
// and api.ErrInterruptedByAlert.
func (w *Waiter) WaitFirst(objects []api.Handle, timeout time.Duration, alertable bool) (int, error) {
	const op = "oneshot.WaitFirst"
	if w == nil || w.platform == nil {
		return -1, api.NewError(api.KindInvalidHandle, op)
	}
	n := len(objects)
	if n == 0 {
		return -1, api.NewError(api.KindInvalidParameter, op).WithContext("objects", 0)
	}
	w.metrics.Inc(control.MetricOneShotWaits)

	q, err := w.platform.CreateQueue()
	if err != nil {
		return -1, err
	}
	packets := make([]api.Packet, 0, n)
	defer func() { w.teardown(q, packets) }()

	for range objects {
		pkt, err := w.platform.CreatePacket()
		if err != nil {
			return -1, err
		}
		packets = append(packets, pkt)
	}

	shift := w.shift(n)
	for k := range n {
		idx := (k + shift) % n
		c := api.Correlation{Key: uintptr(idx)}
		signalled, err := w.platform.Associate(packets[idx], q, objects[idx], c)
		if err != nil {
			w.log.Debug().Err(err).Int("index", idx).Msg("associate failed")
			return -1, err
		}
		if signalled {
			w.metrics.Inc(control.MetricOneShotFired)
			return idx, nil
		}
	}

	var out [1]api.Completion
	if _, err := w.platform.Retrieve(q, out[:], timeout, alertable); err != nil {
		return -1, err
	}
	idx := int(out[0].Key)
	if idx < 0 || idx >= n {
		return -1, api.NewError(api.KindUnderlying, op).WithContext("key", out[0].Key)
	}
	w.metrics.Inc(control.MetricOneShotFired)
	return idx, nil
}

// teardown closes every packet created so far and the queue. Closing a
// packet cancels its association, so no explicit cancel is issued.
func (w *Waiter) teardown(q api.Queue, packets []api.Packet) {
	for i := len(packets) - 1; i >= 0; i-- {
		if err := w.platform.ClosePacket(packets[i]); err != nil {
			w.log.Warn().Err(err).Int("index", i).Msg("close packet failed")
		}
	}
	if err := w.platform.CloseQueue(q); err != nil {
		w.log.Warn().Err(err).Msg("close queue failed")
	}
}
