// Package engine implements the anchor lifecycle manager.
//
// The Manager owns the placed-anchor records, the in-flight host and resolve
// batches, and the pending name prompt. It is driven by two kinds of input:
// discrete user operations (place, name, host all, resolve, clear) and a
// periodic Tick that polls outstanding cloud operations.
//
// ARCHITECTURE:
//
// Single-Writer Tick Loop:
// Every mutation happens on one goroutine. Input goroutines hand operations
// to the Runner as commands; the Runner drains them at tick boundaries and
// then calls Manager.Tick. Nothing else touches Manager state.
//
// Presentation:
// Observable state changes are emitted as Events to a Presenter. Presenters
// observe only; they never call back into the Manager.
//
// Cancellation:
// ClearAll cancels every registered cloud operation before destroying
// records. A completion that arrives afterwards belongs to a batch that no
// longer exists and is never polled.
//
// Logical Clock:
// Events are stamped with a monotonic seq from Clock.Next(). Wall-clock time
// appears only in history entries.
package engine
