// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/momentics/unlimited-wait/affinity"
	"github.com/momentics/unlimited-wait/api"
)

// stressFlags are shared by the engine and oneshot subcommands.
type stressFlags struct {
	objects    int
	kind       string
	batch      int
	timeout    time.Duration
	duration   time.Duration
	rate       float64
	alertEvery int
	pinCPU     int
}

func addStressFlags(cmd *cobra.Command, f *stressFlags) {
	cmd.Flags().IntVarP(&f.objects, "objects", "n", 2048, "number of objects to register")
	cmd.Flags().StringVar(&f.kind, "kind", kindEvent, "object kind (event|semaphore)")
	cmd.Flags().IntVar(&f.batch, "batch", 0, "completions per wait (0 uses batch_size)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "timeout per wait (0 uses wait_timeout)")
	cmd.Flags().DurationVar(&f.duration, "duration", 2*time.Second, "how long to run")
	cmd.Flags().Float64Var(&f.rate, "rate", 5000, "signals per second")
	cmd.Flags().IntVar(&f.alertEvery, "alert-every", 0, "inject an alert every N signals (0 disables)")
	cmd.Flags().IntVar(&f.pinCPU, "pin-cpu", -1, "pin the dispatch thread to this CPU (-1 leaves it unpinned)")
}

// lockDispatchThread locks the calling goroutine to its OS thread so the
// producer's alerts reach the waits issued from it. The returned func
// unbinds and releases the thread.
func lockDispatchThread(src objectSource, f *stressFlags) (func(), error) {
	th, err := affinity.LockThread(f.pinCPU)
	if err != nil {
		return nil, fmt.Errorf("lock dispatch thread: %w", err)
	}
	src.BindThread(th)
	return func() {
		src.BindThread(nil)
		th.Unlock()
	}, nil
}

// resolve fills zero flags from the session settings and validates the rest.
func (f *stressFlags) resolve(s *session) error {
	if f.batch == 0 {
		f.batch = s.settings.BatchSize
	}
	if f.timeout == 0 {
		f.timeout = s.settings.WaitTimeout.Duration
	}
	switch {
	case f.objects <= 0:
		return fmt.Errorf("--objects must be positive, got %d", f.objects)
	case f.batch <= 0:
		return fmt.Errorf("--batch must be positive, got %d", f.batch)
	case f.timeout < 0:
		return fmt.Errorf("an infinite wait timeout would outlive --duration")
	case f.rate <= 0:
		return fmt.Errorf("--rate must be positive, got %g", f.rate)
	}
	return nil
}

// createObjects makes n objects of kind, closing the ones already made on
// failure.
func createObjects(src objectSource, kind string, n int) ([]api.Handle, error) {
	handles := make([]api.Handle, 0, n)
	for range n {
		h, err := src.Create(kind)
		if err != nil {
			closeObjects(src, handles)
			return nil, fmt.Errorf("create %s #%d: %w", kind, len(handles), err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func closeObjects(src objectSource, handles []api.Handle) {
	for _, h := range handles {
		_ = src.Close(h)
	}
}

// producer signals random objects at the configured rate until ctx ends.
type producer struct {
	src        objectSource
	handles    []api.Handle
	limiter    *rate.Limiter
	rng        *rand.Rand
	alertEvery int

	sent   atomic.Int64
	alerts atomic.Int64
}

func newProducer(src objectSource, handles []api.Handle, f *stressFlags) *producer {
	seed := uint64(time.Now().UnixNano())
	return &producer{
		src:        src,
		handles:    handles,
		limiter:    rate.NewLimiter(rate.Limit(f.rate), max(1, int(f.rate/100))),
		rng:        rand.New(rand.NewPCG(seed, seed>>32)),
		alertEvery: f.alertEvery,
	}
}

func (p *producer) run(ctx context.Context) error {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			// deadline reached or canceled
			return nil
		}
		h := p.handles[p.rng.IntN(len(p.handles))]
		if err := p.src.Signal(h); err != nil {
			return fmt.Errorf("signal 0x%x: %w", uintptr(h), err)
		}
		sent := p.sent.Add(1)
		if p.alertEvery > 0 && sent%int64(p.alertEvery) == 0 {
			p.src.Alert()
			p.alerts.Add(1)
		}
	}
}
