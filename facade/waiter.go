// File: facade/waiter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Waiter struct, which aggregates the platform
// adapter, the engine constructor, the one-shot wait, metrics, debug probes
// and the settings store behind a single facade. Its methods mirror the
// boolean-returning call surface of the library; the failure of the most
// recent call is kept for LastError.

package facade

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
	"github.com/momentics/unlimited-wait/engine"
	"github.com/momentics/unlimited-wait/fake"
	"github.com/momentics/unlimited-wait/oneshot"
	"github.com/momentics/unlimited-wait/reactor"
)

// Config holds parameters fixed for the lifetime of a Waiter. Settings can
// later be replaced through Control, which affects engines created after the
// change.
type Config struct {
	Settings control.Settings // Engine and backend tunables
	Platform api.Platform     // Overrides Settings.Backend when non-nil
	Logger   zerolog.Logger   // Structured logger shared by all components
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Settings: control.DefaultSettings(), // native backend, 8 slots
		Logger:   zerolog.Nop(),             // silent unless configured
	}
}

// Waiter is the main facade type.
type Waiter struct {
	platform api.Platform
	oneshot  *oneshot.Waiter
	control  *control.ConfigStore
	metrics  *control.MetricsRegistry
	debug    *control.DebugProbes
	log      zerolog.Logger

	prealloc atomic.Int64
	engines  atomic.Uint64

	mu      sync.Mutex // Protects lastErr
	lastErr error
}

// New constructs a Waiter with the given configuration. The native backend
// fails with api.ErrNotSupported outside Windows.
func New(cfg *Config) (*Waiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	w := &Waiter{
		platform: cfg.Platform,
		control:  control.NewConfigStore(cfg.Settings),
		log:      cfg.Logger,
	}
	if w.platform == nil {
		switch cfg.Settings.Backend {
		case control.BackendSim:
			w.platform = fake.New()
		default:
			p, err := reactor.Native()
			if err != nil {
				return nil, fmt.Errorf("platform init failure: %w", err)
			}
			w.platform = p
		}
	}
	if cfg.Settings.EnableMetrics {
		w.metrics = control.NewMetricsRegistry()
	}
	if cfg.Settings.EnableDebug {
		w.debug = control.NewDebugProbes()
		control.RegisterPlatformProbes(w.debug)
	}
	w.prealloc.Store(int64(cfg.Settings.PreallocatedSlots))
	w.control.OnReload(func(s control.Settings) {
		w.prealloc.Store(int64(s.PreallocatedSlots))
		w.log.Info().Int("preallocated_slots", s.PreallocatedSlots).Msg("settings reloaded")
	})
	w.oneshot = oneshot.NewWaiter(w.platform,
		oneshot.WithLogger(w.log),
		oneshot.WithMetrics(w.metrics),
	)
	return w, nil
}

// record stores err as the last error, clearing it on success, and reports
// whether the call succeeded.
func (w *Waiter) record(err error) bool {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	return err == nil
}

// LastError returns the failure of the most recent call made through w, nil
// when that call succeeded. Concurrent callers share one value; the last
// writer wins.
func (w *Waiter) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// CreateEngine creates an engine whose idle callbacks receive ctx. A zero
// prealloc uses the configured PreallocatedSlots. Returns nil on failure.
func (w *Waiter) CreateEngine(ctx any, prealloc int, onTimeout, onAlertWake engine.WaitCallback) *engine.Engine {
	if prealloc == 0 {
		prealloc = int(w.prealloc.Load())
	}
	id := w.engines.Add(1)
	e, err := engine.New(w.platform,
		engine.WithWaitContext(ctx),
		engine.WithPreallocatedSlots(prealloc),
		engine.OnTimeout(onTimeout),
		engine.OnAlertWake(onAlertWake),
		engine.WithLogger(w.log.With().Uint64("engine", id).Logger()),
		engine.WithMetrics(w.metrics),
		engine.WithDebugProbes(w.debug, fmt.Sprintf("engine.%d", id)),
	)
	if !w.record(err) {
		return nil
	}
	return e
}

// DestroyEngine destroys e. Cleanup runs to completion even when it reports
// failure.
func (w *Waiter) DestroyEngine(e *engine.Engine) bool {
	return w.record(e.Destroy())
}

// AddObject registers obj with e.
func (w *Waiter) AddObject(e *engine.Engine, obj api.Handle, cb engine.ObjectCallback, ctx any) bool {
	return w.record(e.AddObject(obj, cb, ctx))
}

// RemoveObject deregisters obj from e.
func (w *Waiter) RemoveObject(e *engine.Engine, obj api.Handle, keepQueuedSignals bool) bool {
	return w.record(e.RemoveObject(obj, keepQueuedSignals))
}

// WaitOne waits for one notification on e. Timeouts and alerts report false
// with api.ErrTimeout or api.ErrInterruptedByAlert as the last error.
func (w *Waiter) WaitOne(e *engine.Engine, timeout time.Duration, alertable bool) (any, bool) {
	ctx, err := e.WaitOne(timeout, alertable)
	return ctx, w.record(err)
}

// WaitMany waits for up to maxCount notifications on e, retrieving into
// scratch when it is non-nil. The returned contexts are valid even when the
// call reports false because a re-arm failed.
func (w *Waiter) WaitMany(e *engine.Engine, maxCount int, timeout time.Duration, alertable bool, scratch []api.Completion) ([]any, int, bool) {
	if maxCount <= 0 {
		w.record(api.NewError(api.KindInvalidParameter, "facade.WaitMany").WithContext("max_count", maxCount))
		return nil, 0, false
	}
	results := make([]any, maxCount)
	var (
		n   int
		err error
	)
	if scratch != nil {
		n, err = e.WaitManyScratch(results, scratch, timeout, alertable)
	} else {
		n, err = e.WaitMany(results, timeout, alertable)
	}
	ok := w.record(err)
	return results[:n], n, ok
}

// WaitFirstUnbounded waits for the first of objects to be signalled and
// returns its index.
func (w *Waiter) WaitFirstUnbounded(objects []api.Handle, timeout time.Duration, alertable bool) (int, bool) {
	idx, err := w.oneshot.WaitFirst(objects, timeout, alertable)
	return idx, w.record(err)
}

// Platform returns the adapter engines are built on.
func (w *Waiter) Platform() api.Platform {
	return w.platform
}

// Control returns the settings store. Changes apply to engines created
// afterwards.
func (w *Waiter) Control() *control.ConfigStore {
	return w.control
}

// Metrics returns the counters, nil when metrics are disabled.
func (w *Waiter) Metrics() *control.MetricsRegistry {
	return w.metrics
}

// DebugState returns the current value of every registered probe.
func (w *Waiter) DebugState() map[string]any {
	return w.debug.DumpState()
}
