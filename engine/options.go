// File: engine/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"github.com/rs/zerolog"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/control"
)

// DefaultPreallocatedSlots is used when zero slots are requested.
const DefaultPreallocatedSlots = 8

// ObjectCallback runs for each retrieved notification of a registered
// object. Returning true re-arms the registration; false deregisters it.
type ObjectCallback func(ctx any, obj api.Handle) bool

// WaitCallback runs with the engine's wait context when a wait times out or
// is interrupted by an alert.
type WaitCallback func(waitContext any)

// Option customizes engine construction.
type Option func(*Engine)

// WithWaitContext sets the value passed to the timeout and alert callbacks.
func WithWaitContext(ctx any) Option {
	return func(e *Engine) {
		e.waitContext = ctx
	}
}

// WithPreallocatedSlots sets how many packets are created up front.
func WithPreallocatedSlots(n int) Option {
	return func(e *Engine) {
		e.prealloc = n
	}
}

// OnTimeout sets the callback for waits that time out.
func OnTimeout(fn WaitCallback) Option {
	return func(e *Engine) {
		e.onTimeout = fn
	}
}

// OnAlertWake sets the callback for alertable waits interrupted by an alert.
func OnAlertWake(fn WaitCallback) Option {
	return func(e *Engine) {
		e.onAlertWake = fn
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMetrics enables counters in mr.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(e *Engine) {
		e.metrics = mr
	}
}

// WithDebugProbes registers slot-table probes under name in dp. They are
// removed again by Destroy.
func WithDebugProbes(dp *control.DebugProbes, name string) Option {
	return func(e *Engine) {
		e.probes = dp
		e.probeName = name
	}
}

// WithSettings applies the engine-relevant fields of s. An explicit
// WithPreallocatedSlots takes precedence regardless of option order.
func WithSettings(s control.Settings) Option {
	return func(e *Engine) {
		e.settingsPrealloc = s.PreallocatedSlots
	}
}
