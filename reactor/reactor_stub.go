//go:build !windows
// +build !windows

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without wait completion packets.

package reactor

import "github.com/momentics/unlimited-wait/api"

// Native returns ErrNotSupported outside Windows.
func Native() (api.Platform, error) {
	return nil, api.NewError(api.KindNotSupported, "reactor.Native").
		WithContext("reason", "wait completion packets require windows")
}
