// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral constants for the native adapter.

package reactor

import (
	"time"

	"github.com/momentics/unlimited-wait/api"
)

// infiniteMillis is the INFINITE timeout value of the Win32 wait APIs.
const infiniteMillis = 0xFFFFFFFF

// timeoutMillis converts a Go timeout into the millisecond count the
// platform expects. Positive sub-millisecond timeouts round up so they still
// wait.
func timeoutMillis(d time.Duration) uint32 {
	if d < 0 || d == api.Infinite {
		return infiniteMillis
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms >= infiniteMillis {
		return infiniteMillis - 1
	}
	return uint32(ms)
}
