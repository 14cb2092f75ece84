//go:build !windows
// +build !windows

// File: affinity/affinity_other.go
// Author: momentics <momentics@gmail.com>
//
// Alerts exist only where waits can be interrupted by APCs.

package affinity

import "github.com/momentics/unlimited-wait/api"

func (t *Thread) open() error { return nil }

func (t *Thread) alert() error {
	return api.NewError(api.KindNotSupported, "affinity.Alert")
}

func (t *Thread) close() {}
