// Package harness runs lifecycle scenarios against a real Manager.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: host_batch_partial
//	description: "Three anchors hosted, one fails"
//	history:
//	  - { cloud_id: c0, name: Old }
//	steps:
//	  - action: place
//	    pose: [0, 0, -1]
//	  - action: confirm_name
//	    name: P1
//	  - action: host_all
//	  - action: complete_host
//	    anchor: 1
//	    state: Success
//	    cloud_id: c1
//	  - action: tick
//	assertions:
//	  - type: event_count
//	    kind: BatchHostComplete
//	    count: 1
//	  - type: expr
//	    expr: 'events[-1].success == 1'
//
// # Steps
//
// Manager operations (place, confirm_name, cancel_naming, host_all,
// resolve_all, clear) are queued on the Runner and followed by one frame.
// Service and session steps (complete_host, complete_resolve, fail_next,
// tracking, fatal) take effect immediately and are observed on the next
// tick step. A step may name the error code it expects in expect_error.
//
// # Assertion Types
//
//   - event_count: the number of events of a kind
//   - event_order: kinds appear in the given order, not necessarily adjacent
//   - history: the cloud ids persisted in history, oldest first
//   - expr: an expr-lang boolean over events, records, resolved, history,
//     errors, naming and halted
//
// # Determinism
//
// Every run uses a fresh in-memory SQLite store, a scripted cloud service,
// sequence-numbered AR handles and a manual clock that starts at Epoch and
// moves one FrameInterval per tick, so the persisted event log is
// byte-identical across runs and can be compared against golden files.
package harness
