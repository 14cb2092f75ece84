package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
	"github.com/momentics/unlimited-wait/engine"
	"github.com/momentics/unlimited-wait/fake"
)

func newEngine(t *testing.T, p api.Platform, opts ...engine.Option) *engine.Engine {
	t.Helper()
	e, err := engine.New(p, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Destroy() })
	return e
}

func keep(any, api.Handle) bool { return true }

func TestUnboundedCapacity(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)

	const n = 2048
	handles := make([]api.Handle, n)
	for i := range handles {
		handles[i] = p.NewEvent(false, false)
		require.NoError(t, e.AddObject(handles[i], keep, i))
	}
	assert.Greater(t, n, api.MaximumWaitObjects)
	assert.Equal(t, n, e.Registered())
	assert.Equal(t, n, e.Slots())

	for _, i := range []int{0, 63, 64, 1500, n - 1} {
		require.NoError(t, p.SetEvent(handles[i]))
		ctx, err := e.WaitOne(time.Second, false)
		require.NoError(t, err)
		assert.Equal(t, i, ctx)
	}
}

func TestAtMostOneDeliveryPerSignal(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)
	ev := p.NewEvent(false, false)
	calls := 0
	require.NoError(t, e.AddObject(ev, func(ctx any, obj api.Handle) bool {
		calls++
		assert.Equal(t, "x", ctx)
		assert.Equal(t, ev, obj)
		return true
	}, "x"))

	require.NoError(t, p.SetEvent(ev))
	results := make([]any, 8)
	n, err := e.WaitMany(results, 0, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, "x", results[0])

	_, err = e.WaitMany(results, 0, false)
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, 1, calls)
}

func TestRearmIndefinitely(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p, engine.WithPreallocatedSlots(1))
	sem, err := p.NewSemaphore(0, 1)
	require.NoError(t, err)
	var calls int
	require.NoError(t, e.AddObject(sem, func(any, api.Handle) bool { calls++; return true }, 7))

	for range 100 {
		require.NoError(t, p.ReleaseSemaphore(sem, 1))
		ctx, err := e.WaitOne(time.Second, false)
		require.NoError(t, err)
		require.Equal(t, 7, ctx)
	}
	assert.Equal(t, 100, calls)
	assert.Equal(t, 1, e.Slots())
}

func TestNilCallbackRearms(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)
	ev := p.NewEvent(false, false)
	require.NoError(t, e.AddObject(ev, nil, "ctx"))

	for range 3 {
		require.NoError(t, p.SetEvent(ev))
		ctx, err := e.WaitOne(time.Second, false)
		require.NoError(t, err)
		assert.Equal(t, "ctx", ctx)
	}
}

func TestCallbackFalseDeregisters(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)
	ev := p.NewEvent(false, false)
	require.NoError(t, e.AddObject(ev, func(any, api.Handle) bool { return false }, 1))

	require.NoError(t, p.SetEvent(ev))
	_, err := e.WaitOne(time.Second, false)
	require.NoError(t, err)
	assert.Zero(t, e.Registered())

	require.NoError(t, p.SetEvent(ev))
	_, err = e.WaitOne(0, false)
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.ErrorIs(t, e.RemoveObject(ev, false), api.ErrNotFound)
}

func TestRemoveStopsDelivery(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)
	ev := p.NewEvent(false, false)
	require.NoError(t, e.AddObject(ev, keep, 1))

	require.NoError(t, e.RemoveObject(ev, false))
	require.NoError(t, p.SetEvent(ev))
	_, err := e.WaitOne(0, false)
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Zero(t, p.ArmedPackets())

	assert.ErrorIs(t, e.RemoveObject(ev, false), api.ErrNotFound)
	assert.ErrorIs(t, e.RemoveObject(ev, true), api.ErrNotFound)
}

func TestKeepQueuedSignals(t *testing.T) {
	t.Run("kept", func(t *testing.T) {
		p := fake.New()
		e := newEngine(t, p, engine.WithPreallocatedSlots(1))
		ev := p.NewEvent(false, false)
		called := false
		require.NoError(t, e.AddObject(ev, func(any, api.Handle) bool { called = true; return true }, "kept"))

		require.NoError(t, p.SetEvent(ev))
		require.NoError(t, e.RemoveObject(ev, true))

		// the slot waits for its queued completion before reuse
		other := p.NewEvent(false, false)
		require.NoError(t, e.AddObject(other, keep, "other"))
		assert.Equal(t, 2, e.Slots())

		ctx, err := e.WaitOne(time.Second, false)
		require.NoError(t, err)
		assert.Equal(t, "kept", ctx)
		assert.False(t, called, "removed registrations get no callback")

		_, err = e.WaitOne(0, false)
		assert.ErrorIs(t, err, api.ErrTimeout)

		third := p.NewEvent(false, false)
		require.NoError(t, e.AddObject(third, keep, "third"))
		assert.Equal(t, 2, e.Slots(), "slot reused once its completion was delivered")
	})

	t.Run("discarded", func(t *testing.T) {
		p := fake.New()
		e := newEngine(t, p)
		ev := p.NewEvent(false, false)
		require.NoError(t, e.AddObject(ev, keep, "gone"))

		require.NoError(t, p.SetEvent(ev))
		require.NoError(t, e.RemoveObject(ev, false))
		_, err := e.WaitOne(0, false)
		assert.ErrorIs(t, err, api.ErrTimeout)
	})
}

func TestTimeoutCallbackOncePerCall(t *testing.T) {
	p := fake.New()
	var calls []any
	e := newEngine(t, p,
		engine.WithWaitContext("wctx"),
		engine.OnTimeout(func(ctx any) { calls = append(calls, ctx) }),
	)
	results := make([]any, 4)
	for i := range 3 {
		n, err := e.WaitMany(results, 5*time.Millisecond, false)
		assert.Zero(t, n)
		assert.ErrorIs(t, err, api.ErrTimeout)
		assert.Len(t, calls, i+1)
	}
	assert.Equal(t, []any{"wctx", "wctx", "wctx"}, calls)
}

func TestAlertWake(t *testing.T) {
	p := fake.New()
	var wakes, timeouts int
	e := newEngine(t, p,
		engine.OnAlertWake(func(any) { wakes++ }),
		engine.OnTimeout(func(any) { timeouts++ }),
	)
	p.Alert()
	_, err := e.WaitOne(0, false)
	assert.ErrorIs(t, err, api.ErrTimeout, "alerts stay queued for alertable waits")

	_, err = e.WaitOne(api.Infinite, true)
	assert.ErrorIs(t, err, api.ErrInterruptedByAlert)
	assert.True(t, api.IsInformational(err))
	assert.Equal(t, 1, wakes)
	assert.Equal(t, 1, timeouts)
}

func TestConstructionAtomicity(t *testing.T) {
	p := fake.New()
	p.FailPacketCreationAfter(5)
	e, err := engine.New(p, engine.WithPreallocatedSlots(8))
	assert.Nil(t, e)
	assert.ErrorIs(t, err, api.ErrOutOfMemory)
	assert.Zero(t, p.LivePackets())
	assert.Zero(t, p.LiveQueues())

	_, err = engine.New(p, engine.WithPreallocatedSlots(-1))
	assert.ErrorIs(t, err, api.ErrInvalidParameter)
	_, err = engine.New(nil)
	assert.ErrorIs(t, err, api.ErrInvalidParameter)
}

func TestDefaultPreallocation(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)
	assert.Equal(t, engine.DefaultPreallocatedSlots, e.Slots())
	assert.Equal(t, engine.DefaultPreallocatedSlots, p.LivePackets())

	s := control.DefaultSettings()
	s.PreallocatedSlots = 3
	e = newEngine(t, p, engine.WithSettings(s))
	assert.Equal(t, 3, e.Slots())

	e = newEngine(t, p, engine.WithPreallocatedSlots(5), engine.WithSettings(s))
	assert.Equal(t, 5, e.Slots(), "explicit count wins")
	e = newEngine(t, p, engine.WithSettings(s), engine.WithPreallocatedSlots(5))
	assert.Equal(t, 5, e.Slots(), "regardless of order")
}

func TestGrowthRollback(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p, engine.WithPreallocatedSlots(1))
	require.NoError(t, e.AddObject(p.NewEvent(false, false), keep, 0))

	p.FailPacketCreationAfter(0)
	err := e.AddObject(p.NewEvent(false, false), keep, 1)
	assert.ErrorIs(t, err, api.ErrOutOfMemory)
	assert.Equal(t, 1, e.Slots())
	p.FailPacketCreationAfter(-1)

	err = e.AddObject(api.Handle(0xbad0), keep, 2)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	assert.Equal(t, 1, e.Slots())
	assert.Equal(t, 1, p.LivePackets())

	require.NoError(t, e.AddObject(p.NewEvent(false, false), keep, 3))
	assert.Equal(t, 2, e.Slots())
}

func TestAddObjectFailureKeepsFreeSlot(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p, engine.WithPreallocatedSlots(2))

	assert.ErrorIs(t, e.AddObject(0, keep, nil), api.ErrInvalidParameter)
	p.FailNextAssociate(api.NewError(api.KindOutOfMemory, "test"))
	assert.ErrorIs(t, e.AddObject(p.NewEvent(false, false), keep, nil), api.ErrOutOfMemory)
	assert.Zero(t, e.Registered())
	assert.Equal(t, 2, e.Slots())
	assert.Equal(t, 2, p.LivePackets())
}

func TestDestroy(t *testing.T) {
	p := fake.New()
	e, err := engine.New(p)
	require.NoError(t, err)
	ev := p.NewEvent(false, false)
	require.NoError(t, e.AddObject(ev, keep, nil))

	require.NoError(t, e.Destroy())
	assert.Zero(t, p.LivePackets())
	assert.Zero(t, p.LiveQueues())
	require.NoError(t, p.SetEvent(ev), "registered objects stay open")

	assert.ErrorIs(t, e.Destroy(), api.ErrInvalidHandle)
	assert.ErrorIs(t, e.AddObject(ev, keep, nil), api.ErrInvalidHandle)
	assert.ErrorIs(t, e.RemoveObject(ev, false), api.ErrInvalidHandle)
	_, err = e.WaitOne(0, false)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	assert.ErrorIs(t, e.DeferAdd(ev, keep, nil), api.ErrInvalidHandle)
	assert.Zero(t, e.Slots())
}

func TestNilEngine(t *testing.T) {
	var e *engine.Engine
	assert.ErrorIs(t, e.Destroy(), api.ErrInvalidHandle)
	assert.ErrorIs(t, e.AddObject(1, nil, nil), api.ErrInvalidHandle)
	assert.ErrorIs(t, e.RemoveObject(1, false), api.ErrInvalidHandle)
	_, err := e.WaitOne(0, false)
	assert.ErrorIs(t, err, api.ErrInvalidHandle)
	assert.ErrorIs(t, e.FlushDeferred(), api.ErrInvalidHandle)
	assert.Zero(t, e.Slots())
	assert.Nil(t, e.WaitContext())
}

func TestDestroyJoinsFailures(t *testing.T) {
	p := fake.New()
	e, err := engine.New(p, engine.WithPreallocatedSlots(4))
	require.NoError(t, err)

	boom := errors.New("close failed")
	p.FailNextClose(boom)
	err = e.Destroy()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.LivePackets(), "only the failing packet survives")
	assert.Zero(t, p.LiveQueues(), "cleanup continues past the failure")
}

func TestWaitAbandonedByDestroy(t *testing.T) {
	p := fake.New()
	e, err := engine.New(p)
	require.NoError(t, err)
	require.NoError(t, e.AddObject(p.NewEvent(false, false), keep, nil))

	done := make(chan error, 1)
	go func() {
		_, err := e.WaitOne(api.Infinite, false)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.Destroy())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, api.ErrAbandoned)
	case <-time.After(time.Second):
		t.Fatal("wait not released by Destroy")
	}
}

func TestWaitManyValidation(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)

	_, err := e.WaitMany(nil, 0, false)
	assert.ErrorIs(t, err, api.ErrInvalidParameter)
	_, err = e.WaitManyScratch(make([]any, 4), make([]api.Completion, 2), 0, false)
	assert.ErrorIs(t, err, api.ErrInvalidParameter)

	ev := p.NewEvent(false, true)
	require.NoError(t, e.AddObject(ev, keep, "s"))
	results := make([]any, 2)
	n, err := e.WaitManyScratch(results, make([]api.Completion, 8), 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "s", results[0])
}

func TestBatchDelivery(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)
	handles := make([]api.Handle, 10)
	for i := range handles {
		handles[i] = p.NewEvent(false, false)
		require.NoError(t, e.AddObject(handles[i], keep, i))
		require.NoError(t, p.SetEvent(handles[i]))
	}

	seen := map[any]int{}
	results := make([]any, 4)
	for total := 0; total < len(handles); {
		n, err := e.WaitMany(results, time.Second, false)
		require.NoError(t, err)
		require.LessOrEqual(t, n, 4)
		for _, ctx := range results[:n] {
			seen[ctx]++
		}
		total += n
	}
	assert.Len(t, seen, len(handles))
	for ctx, count := range seen {
		assert.Equal(t, 1, count, "context %v", ctx)
	}
}

func TestRearmFailureContinuesBatch(t *testing.T) {
	p := fake.New()
	e := newEngine(t, p)
	a, b := p.NewEvent(false, false), p.NewEvent(false, false)
	require.NoError(t, e.AddObject(a, keep, "a"))
	require.NoError(t, e.AddObject(b, keep, "b"))
	require.NoError(t, p.SetEvent(a))
	require.NoError(t, p.SetEvent(b))

	boom := errors.New("associate failed")
	p.FailNextAssociate(boom)
	results := make([]any, 4)
	n, err := e.WaitMany(results, time.Second, false)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, boom)
	assert.ElementsMatch(t, []any{"a", "b"}, results[:n])
	assert.Equal(t, 1, e.Registered(), "the object that failed to re-arm is deregistered")
}
