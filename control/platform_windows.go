//go:build windows
// +build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows probes: the native backend and the ceiling it lifts.

package control

import (
	"runtime"

	"github.com/momentics/unlimited-wait/api"
)

// RegisterPlatformProbes sets Windows-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.native", func() any {
		return true
	})
	dp.RegisterProbe("platform.maximum_wait_objects", func() any {
		return api.MaximumWaitObjects
	})
}
