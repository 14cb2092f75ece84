// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for the wait
// engine and the one-shot wait.
//
// Provides concurrent-safe primitives including:
//   - Settings with defaults, TOML loading and validation
//   - A settings store with snapshot reads and reload listeners
//   - Counters and gauges updated by the engine
//   - Named debug probes, including per-platform ones
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
