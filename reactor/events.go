// File: reactor/events.go
// Author: momentics <momentics@gmail.com>
//
// Single-object helpers for programs that drive their own completion queue:
// report a kernel object's signal as a queue completion, restart it after
// consumption, and stop it.

package reactor

import "github.com/momentics/unlimited-wait/api"

// ReportAsCompletion creates a packet that posts c to q when obj becomes
// signalled. The caller owns the returned packet and closes it with
// p.ClosePacket when no longer needed.
func ReportAsCompletion(p api.Platform, q api.Queue, obj api.Handle, c api.Correlation) (api.Packet, error) {
	pkt, err := p.CreatePacket()
	if err != nil {
		return 0, err
	}
	if err := RestartCompletion(p, pkt, q, obj, c); err != nil {
		_ = p.ClosePacket(pkt)
		return 0, err
	}
	return pkt, nil
}

// RestartCompletion re-arms pkt after its completion was retrieved. Passing
// the retrieved Completion's Correlation keeps the notification identical.
func RestartCompletion(p api.Platform, pkt api.Packet, q api.Queue, obj api.Handle, c api.Correlation) error {
	if pkt == 0 {
		return api.NewError(api.KindInvalidHandle, "reactor.RestartCompletion")
	}
	_, err := p.Associate(pkt, q, obj, c)
	return err
}

// CancelCompletion stops pkt from completing into its queue. When
// removeQueued is set an already queued completion is withdrawn as well.
func CancelCompletion(p api.Platform, pkt api.Packet, removeQueued bool) error {
	if pkt == 0 {
		return api.NewError(api.KindInvalidHandle, "reactor.CancelCompletion")
	}
	_, err := p.Cancel(pkt, removeQueued)
	return err
}
