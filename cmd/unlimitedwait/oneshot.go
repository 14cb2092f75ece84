// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/unlimited-wait/api"
)

var oneshotFlags stressFlags

var oneshotCmd = &cobra.Command{
	Use:   "oneshot",
	Short: "Repeatedly wait for the first of many objects",
	Args:  cobra.NoArgs,
	RunE:  runOneshot,
}

func init() {
	addStressFlags(oneshotCmd, &oneshotFlags)
}

func runOneshot(cmd *cobra.Command, _ []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	f := oneshotFlags
	if err := f.resolve(sess); err != nil {
		return err
	}
	handles, err := createObjects(sess.objects, f.kind, f.objects)
	if err != nil {
		return err
	}
	defer closeObjects(sess.objects, handles)

	ctx, cancel := context.WithTimeout(cmd.Context(), f.duration)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	prod := newProducer(sess.objects, handles, &f)
	g.Go(func() error { return prod.run(gctx) })

	w := sess.waiter
	hits := make([]int64, len(handles))
	var waits, fired, idle int64
	g.Go(func() error {
		release, err := lockDispatchThread(sess.objects, &f)
		if err != nil {
			return err
		}
		defer release()
		for gctx.Err() == nil {
			waits++
			idx, ok := w.WaitFirstUnbounded(handles, f.timeout, sess.settings.Alertable)
			if ok {
				fired++
				hits[idx]++
				continue
			}
			if err := w.LastError(); !api.IsInformational(err) {
				return err
			}
			idle++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	touched := 0
	for _, h := range hits {
		if h > 0 {
			touched++
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "objects:      %d (%s)\n", len(handles), f.kind)
	fmt.Fprintf(out, "signals sent: %d\n", prod.sent.Load())
	fmt.Fprintf(out, "waits:        %d\n", waits)
	fmt.Fprintf(out, "fired:        %d\n", fired)
	fmt.Fprintf(out, "idle:         %d\n", idle)
	fmt.Fprintf(out, "objects hit:  %d\n", touched)
	return nil
}
