// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/unlimited-wait/api"
	"github.com/momentics/unlimited-wait/engine"
)

var engineFlags stressFlags

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Register many objects with one engine and dispatch their signals",
	Args:  cobra.NoArgs,
	RunE:  runEngine,
}

func init() {
	addStressFlags(engineCmd, &engineFlags)
}

func runEngine(cmd *cobra.Command, _ []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	f := engineFlags
	if err := f.resolve(sess); err != nil {
		return err
	}
	handles, err := createObjects(sess.objects, f.kind, f.objects)
	if err != nil {
		return err
	}
	defer closeObjects(sess.objects, handles)

	var timeouts, wakes atomic.Int64
	w := sess.waiter
	e := w.CreateEngine(nil, 0,
		func(any) { timeouts.Add(1) },
		func(any) { wakes.Add(1) },
	)
	if e == nil {
		return w.LastError()
	}
	defer func() {
		if !w.DestroyEngine(e) {
			sess.log.Error().Err(w.LastError()).Msg("destroy engine")
		}
	}()

	hits := make([]atomic.Int64, len(handles))
	onSignal := engine.ObjectCallback(func(ctx any, _ api.Handle) bool {
		hits[ctx.(int)].Add(1)
		return true
	})
	for i, h := range handles {
		if !w.AddObject(e, h, onSignal, i) {
			return fmt.Errorf("add object #%d: %w", i, w.LastError())
		}
	}
	sess.log.Info().Int("objects", len(handles)).Int("slots", e.Slots()).Msg("objects registered")

	ctx, cancel := context.WithTimeout(cmd.Context(), f.duration)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	prod := newProducer(sess.objects, handles, &f)
	g.Go(func() error { return prod.run(gctx) })

	var delivered, rearmFailures int64
	g.Go(func() error {
		release, err := lockDispatchThread(sess.objects, &f)
		if err != nil {
			return err
		}
		defer release()
		scratch := make([]api.Completion, f.batch)
		for gctx.Err() == nil {
			_, n, ok := w.WaitMany(e, f.batch, f.timeout, sess.settings.Alertable, scratch)
			delivered += int64(n)
			if ok {
				continue
			}
			err := w.LastError()
			switch {
			case api.IsInformational(err):
			case n > 0:
				rearmFailures++
				sess.log.Warn().Err(err).Msg("batch delivered with failures")
			default:
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	touched := 0
	for i := range hits {
		if hits[i].Load() > 0 {
			touched++
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "objects:        %d (%s)\n", len(handles), f.kind)
	fmt.Fprintf(out, "slots:          %d\n", e.Slots())
	fmt.Fprintf(out, "signals sent:   %d\n", prod.sent.Load())
	fmt.Fprintf(out, "delivered:      %d\n", delivered)
	fmt.Fprintf(out, "objects hit:    %d\n", touched)
	fmt.Fprintf(out, "timeouts:       %d\n", timeouts.Load())
	fmt.Fprintf(out, "alerts:         %d sent, %d woke\n", prod.alerts.Load(), wakes.Load())
	fmt.Fprintf(out, "rearm failures: %d\n", rearmFailures)
	if mr := w.Metrics(); mr != nil {
		printMap(out, "metrics", mr.GetSnapshot())
	}
	return nil
}
