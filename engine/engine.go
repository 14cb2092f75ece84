// File: engine/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine construction, teardown and introspection.

package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
	"github.com/momentics/unlimited-wait/internal/slots"
	"github.com/momentics/unlimited-wait/pool"
)

// registration is one object bound to one slot.
type registration struct {
	object   api.Handle
	callback ObjectCallback
	context  any
	gen      uint64
}

func (r *registration) correlation(slot int) api.Correlation {
	return api.Correlation{Key: uintptr(slot), Tag: uintptr(r.gen)}
}

// retiredKey names a removed registration whose completion is still queued.
type retiredKey struct {
	slot int
	tag  uintptr
}

// Engine multiplexes an unbounded number of kernel objects onto one
// completion queue. A nil or destroyed Engine rejects every call with
// api.ErrInvalidHandle.
type Engine struct {
	platform api.Platform
	queue    api.Queue

	mu      sync.RWMutex
	table   slots.Table[registration]
	nextGen uint64 // guarded by mu (exclusive)
	closed  atomic.Bool

	// mirrors of the table for readers that cannot take mu
	nslots      atomic.Int64
	nregistered atomic.Int64

	retiredMu sync.Mutex
	retired   map[retiredKey]*registration

	deferredMu sync.Mutex
	deferred   *queue.Queue // of deferredOp

	scratch *pool.CompletionPool

	prealloc         int
	settingsPrealloc int
	waitContext      any
	onTimeout        WaitCallback
	onAlertWake      WaitCallback
	log              zerolog.Logger
	metrics          *control.MetricsRegistry
	probes           *control.DebugProbes
	probeName        string
}

// New creates an engine on platform p: one completion queue plus the
// preallocated packets. Construction is atomic; on any failure every
// resource created so far is released and the error is returned.
func New(p api.Platform, opts ...Option) (*Engine, error) {
	const op = "engine.New"
	if p == nil {
		return nil, api.NewError(api.KindInvalidParameter, op).WithContext("platform", nil)
	}
	e := &Engine{
		platform: p,
		retired:  make(map[retiredKey]*registration),
		deferred: queue.New(),
		scratch:  pool.NewCompletionPool(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.prealloc == 0 {
		e.prealloc = e.settingsPrealloc
	}
	if e.prealloc < 0 {
		return nil, api.NewError(api.KindInvalidParameter, op).WithContext("preallocated_slots", e.prealloc)
	}
	if e.prealloc == 0 {
		e.prealloc = DefaultPreallocatedSlots
	}

	q, err := p.CreateQueue()
	if err != nil {
		return nil, err
	}
	e.queue = q

	for i := 0; i < e.prealloc; i++ {
		pkt, err := p.CreatePacket()
		if err != nil {
			e.rollback()
			e.log.Error().Err(err).Int("created", i).Int("requested", e.prealloc).Msg("engine construction failed")
			return nil, err
		}
		e.table.At(e.table.Grow()).Packet = pkt
	}

	e.nslots.Store(int64(e.table.Len()))
	e.metrics.Set(control.MetricSlots, e.table.Len())
	e.registerProbes()
	e.log.Debug().Int("slots", e.prealloc).Msg("engine created")
	return e, nil
}

// rollback releases a partially constructed engine.
func (e *Engine) rollback() {
	for _, s := range e.table.Drain() {
		if s.Packet != 0 {
			_ = e.platform.ClosePacket(s.Packet)
		}
	}
	_ = e.platform.CloseQueue(e.queue)
}

// Destroy releases every packet, the slot table and the queue. Every release
// is attempted even when an earlier one fails; the failures are joined into
// the returned error. Registered objects are not closed. A wait blocked on
// the engine's queue returns api.ErrAbandoned.
func (e *Engine) Destroy() error {
	const op = "engine.Destroy"
	if e == nil {
		return api.NewError(api.KindInvalidHandle, op)
	}
	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return api.NewError(api.KindInvalidHandle, op).WithContext("engine", "destroyed")
	}
	e.closed.Store(true)
	if n := e.table.Count(); n > 0 {
		e.log.Debug().Int("registered", n).Msg("destroying engine with live registrations")
	}

	var errs []error
	for i, s := range e.table.Drain() {
		s.Clear()
		if s.Packet == 0 {
			continue
		}
		if err := e.platform.ClosePacket(s.Packet); err != nil {
			e.log.Error().Err(err).Int("slot", i).Msg("close packet failed")
			errs = append(errs, err)
		}
	}
	e.nslots.Store(0)
	e.nregistered.Store(0)
	e.retiredMu.Lock()
	e.retired = nil
	e.retiredMu.Unlock()
	e.mu.Unlock()

	e.deferredMu.Lock()
	e.deferred = queue.New()
	e.deferredMu.Unlock()

	if err := e.platform.CloseQueue(e.queue); err != nil {
		e.log.Error().Err(err).Msg("close queue failed")
		errs = append(errs, err)
	}
	e.unregisterProbes()
	e.metrics.Set(control.MetricSlots, 0)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	e.log.Debug().Msg("engine destroyed")
	return nil
}

// Slots returns the size of the slot table. It does not take the engine
// lock and may be called from object callbacks.
func (e *Engine) Slots() int {
	if e == nil {
		return 0
	}
	return int(e.nslots.Load())
}

// Registered returns the number of active registrations. Like Slots it may
// be called from object callbacks.
func (e *Engine) Registered() int {
	if e == nil {
		return 0
	}
	return int(e.nregistered.Load())
}

// WaitContext returns the value given by WithWaitContext.
func (e *Engine) WaitContext() any {
	if e == nil {
		return nil
	}
	return e.waitContext
}

func (e *Engine) retiredCount() int {
	e.retiredMu.Lock()
	defer e.retiredMu.Unlock()
	return len(e.retired)
}

func (e *Engine) registerProbes() {
	if e.probes == nil {
		return
	}
	e.probes.RegisterProbe(e.probeName+".slots", func() any { return e.Slots() })
	e.probes.RegisterProbe(e.probeName+".registered", func() any { return e.Registered() })
	e.probes.RegisterProbe(e.probeName+".retired", func() any { return e.retiredCount() })
}

func (e *Engine) unregisterProbes() {
	if e.probes == nil {
		return
	}
	for _, suffix := range []string{".slots", ".registered", ".retired"} {
		e.probes.UnregisterProbe(e.probeName + suffix)
	}
}
