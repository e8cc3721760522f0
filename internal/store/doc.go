// Package store provides SQLite-backed storage for anchorkeep.
//
// Three tables live in one database file:
//   - history: hosted cloud anchors and their names, capped to a limit
//   - events: the presentation event log, keyed by session and seq
//   - cloud_anchors: the simulated cloud service's anchor registry
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// History appends are retried with exponential backoff when another process
// holds the write lock past the busy timeout.
//
// All queries order by logical sequence (seq), never by timestamps.
package store
