// Package store provides a SQLite-backed flight recorder for evaluated
// frames.
//
// The recorder keeps what the engine produced, never what it needs to
// resume: timelines are not restored from disk. A recorded run holds:
//   - Runs: one row per engine run (UUIDv7 id, graph hash, versions)
//   - Frames: wall delta per frame index
//   - Frame times: every timeline's t, prev_t and pause flags
//   - Writes: sink writes that changed their record field
//   - Prunes: batches removed from a ledger during the frame
//
// # Critical Patterns
//
// Idempotent Frames
//   - Frames are keyed by (run_id, idx); writing a frame twice is a no-op
//   - Children are only inserted when the frame row is new
//
// Deterministic Query Results
//   - All queries order by (idx, ord); runs order by id COLLATE BINARY
//   - UUIDv7 run ids list in creation order
//
// Canonical Values
//   - Write values are stored as canonical JSON (ir.MarshalCanonical)
//   - Removals store NULL
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
