// File: engine/wait.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Batched retrieval, dispatch and re-arm.

package engine

import (
	"errors"
	"time"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
	"github.com/momentics/unlimited-wait/internal/slots"
)

// WaitOne waits for a single notification and returns the context of the
// object that produced it. See WaitMany for the outcomes.
func (e *Engine) WaitOne(timeout time.Duration, alertable bool) (any, error) {
	var one [1]any
	n, err := e.WaitMany(one[:], timeout, alertable)
	if n == 0 {
		return nil, err
	}
	return one[0], err
}

// WaitMany retrieves up to len(results) notifications, runs the callback of
// each and stores the object contexts in results. It returns the number of
// contexts stored.
//
// A wait that times out runs the timeout callback and returns
// api.ErrTimeout; one interrupted by an alert runs the alert callback and
// returns api.ErrInterruptedByAlert. A wait whose engine is destroyed while
// it blocks returns api.ErrAbandoned. Re-arm failures do not stop the batch:
// the count of delivered contexts is returned with the joined failures.
func (e *Engine) WaitMany(results []any, timeout time.Duration, alertable bool) (int, error) {
	if e == nil {
		return 0, api.NewError(api.KindInvalidHandle, "engine.WaitMany")
	}
	buf := e.scratch.Get(len(results))
	defer e.scratch.Put(buf)
	return e.WaitManyScratch(results, *buf, timeout, alertable)
}

// WaitManyScratch is WaitMany retrieving into a caller-owned buffer, which
// must hold at least len(results) entries.
func (e *Engine) WaitManyScratch(results []any, scratch []api.Completion, timeout time.Duration, alertable bool) (int, error) {
	const op = "engine.WaitMany"
	if e == nil {
		return 0, api.NewError(api.KindInvalidHandle, op)
	}
	if len(results) == 0 {
		return 0, api.NewError(api.KindInvalidParameter, op).WithContext("results", 0)
	}
	if len(scratch) < len(results) {
		return 0, api.NewError(api.KindInvalidParameter, op).
			WithContext("scratch", len(scratch)).WithContext("results", len(results))
	}
	if e.closed.Load() {
		return 0, api.NewError(api.KindInvalidHandle, op).WithContext("engine", "destroyed")
	}
	batch := scratch[:len(results)]

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	remaining := timeout
	for {
		n, err := e.platform.Retrieve(e.queue, batch, remaining, alertable)
		if err != nil {
			return 0, e.idle(err)
		}

		delivered, derr := e.dispatch(batch[:n], results)
		if errors.Is(derr, api.ErrAbandoned) {
			return 0, derr
		}
		if ferr := e.FlushDeferred(); ferr != nil && !e.closed.Load() {
			e.log.Warn().Err(ferr).Msg("deferred operations failed")
		}
		if delivered > 0 || derr != nil {
			return delivered, derr
		}

		// Every completion of this pass was stale.
		if timeout >= 0 {
			remaining = max(time.Until(deadline), 0)
		}
	}
}

// dispatch hands each retrieved completion to its registration under the
// shared lock and returns how many contexts were stored in results.
func (e *Engine) dispatch(batch []api.Completion, results []any) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return 0, api.NewError(api.KindAbandoned, "engine.WaitMany").WithContext("engine", "destroyed")
	}

	var (
		n    int
		errs []error
	)
	for _, c := range batch {
		idx := int(c.Key)
		s := e.table.At(idx)
		if s == nil {
			e.dropStale(c)
			continue
		}
		if r := s.Load(); r != nil && uintptr(r.gen) == c.Tag {
			results[n] = r.context
			n++
			if err := e.fire(idx, s, r); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if r := e.takeRetired(idx, c.Tag); r != nil {
			results[n] = r.context
			n++
			s.SetPending(false)
			e.metrics.Inc(control.MetricCompletions)
			continue
		}
		e.dropStale(c)
	}
	return n, errors.Join(errs...)
}

// fire runs the callback of a live registration, then re-arms its packet or
// frees the slot.
func (e *Engine) fire(idx int, s *slots.Slot[registration], r *registration) error {
	e.metrics.Inc(control.MetricCompletions)
	rearm := true
	if r.callback != nil {
		rearm = r.callback(r.context, r.object)
	}
	if !rearm {
		e.release(s, r)
		return nil
	}
	if _, err := e.platform.Associate(s.Packet, e.queue, r.object, r.correlation(idx)); err != nil {
		e.release(s, r)
		e.metrics.Inc(control.MetricRearmFailures)
		e.log.Warn().Err(err).Uint64("object", uint64(r.object)).Int("slot", idx).Msg("re-arm failed, object deregistered")
		return err
	}
	return nil
}

func (e *Engine) release(s *slots.Slot[registration], r *registration) {
	if s.Release(r) {
		e.nregistered.Add(-1)
	}
}

func (e *Engine) dropStale(c api.Completion) {
	e.metrics.Inc(control.MetricStale)
	e.log.Debug().Uint64("slot", uint64(c.Key)).Uint64("tag", uint64(c.Tag)).Msg("stale notification dropped")
}

// idle turns a failed retrieval into the wait's outcome, running the
// matching idle callback for timeouts and alerts.
func (e *Engine) idle(err error) error {
	if e.closed.Load() {
		return api.NewError(api.KindAbandoned, "engine.WaitMany").WithContext("retrieve", err.Error())
	}
	switch api.KindOf(err) {
	case api.KindTimeout:
		e.metrics.Inc(control.MetricTimeouts)
		if e.onTimeout != nil {
			e.onTimeout(e.waitContext)
		}
	case api.KindInterruptedByAlert:
		e.metrics.Inc(control.MetricAlerts)
		if e.onAlertWake != nil {
			e.onAlertWake(e.waitContext)
		}
	case api.KindAbandoned:
	default:
		e.log.Error().Err(err).Msg("retrieve failed")
	}
	return err
}
