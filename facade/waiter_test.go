package facade_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
	"github.com/momentics/unlimited-wait/facade"
	"github.com/momentics/unlimited-wait/fake"
)

func newSim(t *testing.T) (*facade.Waiter, *fake.Platform) {
	t.Helper()
	cfg := facade.DefaultConfig()
	cfg.Settings.Backend = control.BackendSim
	w, err := facade.New(cfg)
	require.NoError(t, err)
	p, ok := w.Platform().(*fake.Platform)
	require.True(t, ok)
	return w, p
}

func TestFullLifecycle(t *testing.T) {
	w, p := newSim(t)
	timeouts := 0
	e := w.CreateEngine("engine-ctx", 0, func(ctx any) {
		assert.Equal(t, "engine-ctx", ctx)
		timeouts++
	}, nil)
	require.NotNil(t, e)
	assert.NoError(t, w.LastError())

	ev := p.NewEvent(false, false)
	require.True(t, w.AddObject(e, ev, nil, "obj"))
	require.NoError(t, p.SetEvent(ev))

	ctx, ok := w.WaitOne(e, time.Second, false)
	require.True(t, ok)
	assert.Equal(t, "obj", ctx)

	_, ok = w.WaitOne(e, 0, false)
	assert.False(t, ok)
	assert.ErrorIs(t, w.LastError(), api.ErrTimeout)
	assert.Equal(t, 1, timeouts)

	require.NoError(t, p.SetEvent(ev))
	results, n, ok := w.WaitMany(e, 4, time.Second, false, make([]api.Completion, 4))
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, []any{"obj"}, results)

	require.True(t, w.RemoveObject(e, ev, false))
	assert.False(t, w.RemoveObject(e, ev, false))
	assert.ErrorIs(t, w.LastError(), api.ErrNotFound)

	require.True(t, w.DestroyEngine(e))
	assert.NoError(t, w.LastError(), "success clears the last error")
	assert.False(t, w.DestroyEngine(e))
	assert.ErrorIs(t, w.LastError(), api.ErrInvalidHandle)
}

func TestCreateEngineFailure(t *testing.T) {
	w, p := newSim(t)
	p.FailPacketCreationAfter(1)
	e := w.CreateEngine(nil, 4, nil, nil)
	assert.Nil(t, e)
	assert.ErrorIs(t, w.LastError(), api.ErrOutOfMemory)
	assert.Zero(t, p.LivePackets())
}

func TestWaitManyInvalidCount(t *testing.T) {
	w, _ := newSim(t)
	e := w.CreateEngine(nil, 1, nil, nil)
	require.NotNil(t, e)
	_, _, ok := w.WaitMany(e, 0, 0, false, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, w.LastError(), api.ErrInvalidParameter)
}

func TestWaitFirstUnbounded(t *testing.T) {
	w, p := newSim(t)
	objs := make([]api.Handle, 100)
	for i := range objs {
		objs[i] = p.NewEvent(false, i == 42)
	}
	idx, ok := w.WaitFirstUnbounded(objs, 0, false)
	require.True(t, ok)
	assert.Equal(t, 42, idx)

	_, ok = w.WaitFirstUnbounded(nil, 0, false)
	assert.False(t, ok)
	assert.ErrorIs(t, w.LastError(), api.ErrInvalidParameter)
}

func TestReloadChangesPreallocation(t *testing.T) {
	w, _ := newSim(t)
	s := w.Control().GetSnapshot()
	s.PreallocatedSlots = 3
	require.NoError(t, w.Control().SetConfig(s))

	e := w.CreateEngine(nil, 0, nil, nil)
	require.NotNil(t, e)
	assert.Equal(t, 3, e.Slots())

	state := w.DebugState()
	assert.Contains(t, state, "platform.os")
	assert.Contains(t, state, "engine.1.slots")
	require.True(t, w.DestroyEngine(e))
	assert.NotContains(t, w.DebugState(), "engine.1.slots")
	assert.NotNil(t, w.Metrics())
}

func TestNativeBackendOutsideWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("native backend available")
	}
	_, err := facade.New(facade.DefaultConfig())
	assert.ErrorIs(t, err, api.ErrNotSupported)
}

func TestInvalidSettings(t *testing.T) {
	cfg := facade.DefaultConfig()
	cfg.Settings.BatchSize = 0
	_, err := facade.New(cfg)
	assert.ErrorIs(t, err, api.ErrInvalidParameter)
}

func TestExplicitPlatform(t *testing.T) {
	p := fake.New()
	cfg := facade.DefaultConfig()
	cfg.Platform = p
	cfg.Settings.EnableMetrics = false
	w, err := facade.New(cfg)
	require.NoError(t, err)
	assert.Same(t, p, w.Platform())
	assert.Nil(t, w.Metrics())
}
