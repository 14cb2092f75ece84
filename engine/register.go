// File: engine/register.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Object registration, removal and the deferred-operation queue used from
// inside object callbacks.

package engine

import (
	"errors"
	"fmt"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
)

// AddObject starts delivering signals of obj. cb and ctx are optional; ctx
// is what WaitMany reports for obj. A free slot is reused when one exists,
// otherwise the table grows by one slot and a new packet is created; a
// failure after growing shrinks the table back. The engine does not take
// ownership of obj.
func (e *Engine) AddObject(obj api.Handle, cb ObjectCallback, ctx any) error {
	const op = "engine.AddObject"
	if e == nil {
		return api.NewError(api.KindInvalidHandle, op)
	}
	if obj == 0 {
		return api.NewError(api.KindInvalidParameter, op).WithContext("object", obj)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return api.NewError(api.KindInvalidHandle, op).WithContext("engine", "destroyed")
	}
	return e.addLocked(obj, cb, ctx)
}

func (e *Engine) addLocked(obj api.Handle, cb ObjectCallback, ctx any) error {
	idx, ok := e.table.FindFree()
	grown := false
	if !ok {
		idx = e.table.Grow()
		pkt, err := e.platform.CreatePacket()
		if err != nil {
			e.table.Shrink()
			return err
		}
		e.table.At(idx).Packet = pkt
		grown = true
	}
	s := e.table.At(idx)

	e.nextGen++
	r := &registration{object: obj, callback: cb, context: ctx, gen: e.nextGen}
	if _, err := e.platform.Associate(s.Packet, e.queue, obj, r.correlation(idx)); err != nil {
		if grown {
			if cerr := e.platform.ClosePacket(s.Packet); cerr != nil {
				e.log.Warn().Err(cerr).Int("slot", idx).Msg("close packet of rolled back slot failed")
			}
			e.table.Shrink()
		}
		return err
	}
	s.Assign(r)
	e.nregistered.Add(1)

	e.metrics.Inc(control.MetricAdds)
	if grown {
		e.nslots.Store(int64(e.table.Len()))
		e.metrics.Set(control.MetricSlots, e.table.Len())
	}
	e.log.Debug().Uint64("object", uint64(obj)).Int("slot", idx).Bool("grown", grown).Msg("object added")
	return nil
}

// RemoveObject stops delivering signals of obj. With keepQueuedSignals a
// signal that fired before the call is delivered once more, without the
// callback, by a later wait or by the wait that already retrieved it;
// without it that signal is discarded. Returns api.ErrNotFound
// when obj is not registered, including when its callback already
// deregistered it.
func (e *Engine) RemoveObject(obj api.Handle, keepQueuedSignals bool) error {
	const op = "engine.RemoveObject"
	if e == nil {
		return api.NewError(api.KindInvalidHandle, op)
	}
	if obj == 0 {
		return api.NewError(api.KindInvalidParameter, op).WithContext("object", obj)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return api.NewError(api.KindInvalidHandle, op).WithContext("engine", "destroyed")
	}
	return e.removeLocked(obj, keepQueuedSignals)
}

func (e *Engine) removeLocked(obj api.Handle, keep bool) error {
	idx, ok := e.table.Find(func(r *registration) bool { return r.object == obj })
	if !ok {
		return api.NewError(api.KindNotFound, "engine.RemoveObject").WithContext("object", obj)
	}
	s := e.table.At(idx)
	r := s.Load()
	res, err := e.platform.Cancel(s.Packet, !keep)
	if err != nil {
		return err
	}
	s.Clear()
	e.nregistered.Add(-1)
	// A live registration's packet is always associated, so an inactive
	// packet means a waiter retrieved its completion and has not yet
	// dispatched it. With keep that completion is still owed.
	retire := res == api.CancelQueued || (keep && res == api.CancelInactive)
	if retire {
		e.retiredMu.Lock()
		e.retired[retiredKey{slot: idx, tag: uintptr(r.gen)}] = r
		e.retiredMu.Unlock()
		s.SetPending(true)
	}

	e.metrics.Inc(control.MetricRemoves)
	e.log.Debug().Uint64("object", uint64(obj)).Int("slot", idx).Stringer("cancel", res).Bool("retired", retire).Msg("object removed")
	return nil
}

// takeRetired claims the retired registration for a completion, if any.
func (e *Engine) takeRetired(slot int, tag uintptr) *registration {
	e.retiredMu.Lock()
	defer e.retiredMu.Unlock()
	k := retiredKey{slot: slot, tag: tag}
	r, ok := e.retired[k]
	if !ok {
		return nil
	}
	delete(e.retired, k)
	return r
}

// deferredOp is a registration change requested from inside a callback.
type deferredOp struct {
	add      bool
	object   api.Handle
	callback ObjectCallback
	context  any
	keep     bool
}

func (d deferredOp) String() string {
	if d.add {
		return fmt.Sprintf("add(0x%x)", uintptr(d.object))
	}
	return fmt.Sprintf("remove(0x%x, keep=%t)", uintptr(d.object), d.keep)
}

// DeferAdd queues an AddObject to run after the current dispatch ends. It
// is the way to register objects from inside an ObjectCallback.
func (e *Engine) DeferAdd(obj api.Handle, cb ObjectCallback, ctx any) error {
	return e.enqueue("engine.DeferAdd", deferredOp{add: true, object: obj, callback: cb, context: ctx})
}

// DeferRemove queues a RemoveObject to run after the current dispatch ends.
func (e *Engine) DeferRemove(obj api.Handle, keepQueuedSignals bool) error {
	return e.enqueue("engine.DeferRemove", deferredOp{object: obj, keep: keepQueuedSignals})
}

func (e *Engine) enqueue(op string, d deferredOp) error {
	if e == nil {
		return api.NewError(api.KindInvalidHandle, op)
	}
	if d.object == 0 {
		return api.NewError(api.KindInvalidParameter, op).WithContext("object", d.object)
	}
	if e.closed.Load() {
		return api.NewError(api.KindInvalidHandle, op).WithContext("engine", "destroyed")
	}
	e.deferredMu.Lock()
	e.deferred.Add(d)
	e.deferredMu.Unlock()
	e.metrics.Inc(control.MetricDeferred)
	return nil
}

// FlushDeferred applies every queued DeferAdd/DeferRemove in order and
// returns their joined failures. WaitMany calls it after each dispatch.
func (e *Engine) FlushDeferred() error {
	const op = "engine.FlushDeferred"
	if e == nil {
		return api.NewError(api.KindInvalidHandle, op)
	}
	e.deferredMu.Lock()
	if e.deferred.Length() == 0 {
		e.deferredMu.Unlock()
		return nil
	}
	var ops []deferredOp
	for e.deferred.Length() > 0 {
		ops = append(ops, e.deferred.Remove().(deferredOp))
	}
	e.deferredMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return api.NewError(api.KindInvalidHandle, op).WithContext("engine", "destroyed")
	}
	var errs []error
	for _, d := range ops {
		var err error
		if d.add {
			err = e.addLocked(d.object, d.callback, d.context)
		} else {
			err = e.removeLocked(d.object, d.keep)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
		}
	}
	return errors.Join(errs...)
}
