// Package anchor holds the placed-anchor record table.
//
// Records are keyed by a stable placement-order ID. Each record carries its
// own presentation artifacts, so removing a record removes everything tied
// to it in one step and surviving records keep their IDs and default names.
//
// The table is not safe for concurrent use. It is owned by the lifecycle
// manager and mutated only on the tick goroutine.
package anchor
