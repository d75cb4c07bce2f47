// Package harness runs timeline scenarios as executable conformance tests.
//
// A scenario names a CUE graph, drives its timelines through a list of
// steps and checks the world and the frame trace along the way.
//
// # Scenario Format
//
//	name: rock_rewind
//	description: "A hit is undone by a paused rewind and pruned on resume"
//	graph: ../graphs/rock.cue
//	steps:
//	  - advance: { frames: 4, delta: 0.5 }
//	  - insert:
//	      batch: hit
//	      stops:
//	        - { ledger: hp, t: 2.5, value: 50 }
//	  - seek: { t: 1, paused: true }
//	  - expect: { record: rock, field: hp, value: 100 }
//	  - expect: { record: rock, field: dock, absent: true }
//	assertions:
//	  - type: pruned
//	    ledger: hp
//	    batch: hit
//	  - type: final_state
//	    record: rock
//	    expect: { hp: 100 }
//
// # Steps
//
//   - advance: runs N frames of a wall-clock delta
//   - seek: moves, pauses or sets the scrub rate of one timeline; applied
//     at the start of the next frame
//   - insert: commits stops under a named batch; each distinct name draws
//     one id from the registry, so stops sharing a name prune together
//   - expect: checks a record field's current value, or its absence
//
// # Assertion Types
//
//   - trace_contains: a sink write with the given record/field (and
//     optionally op and value) appears in the trace
//   - trace_order: sinks first wrote in the given order
//   - trace_count: a sink wrote exactly N times
//   - pruned: a named batch was pruned from a ledger
//   - final_state: record fields at the end of the run
//
// # Deterministic Testing
//
// Every scenario runs on a fresh engine with testutil.DeterministicRegistry
// and a fixed run id, so traces are reproducible and comparable against
// golden files (RunWithGolden).
package harness
