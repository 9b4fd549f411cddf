// Package safego launches fire-and-forget goroutines with panic recovery.
// Audit writes and shipper flushes run detached from the request that caused
// them; a panic there must surface in the logs, not kill the process or
// vanish with the goroutine.
package safego

import "log/slog"

// Go runs fn in a new goroutine, recovering and logging any panic.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
