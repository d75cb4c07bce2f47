// Package engine implements the per-frame scheduled evaluation pass.
//
// The engine owns every timeline clock, the ledger registry, the adapter
// arena and the sinks. Once per frame it advances the clocks, lets live
// systems produce causal stops, and pulls every sink so evaluated values
// reach the world.
//
// ARCHITECTURE:
//
// Single-Writer Frame Loop:
// All timeline state is mutated in the goroutine that calls Frame (or Run).
// This ensures:
// - No locking of clocks or ledgers
// - Reproducible evaluation order
// - Simple reasoning about causality
//
// Frame Order:
// 1. Drain queued commands (seeks, stop insertions)
// 2. Advance every clock from the wall-clock delta
// 3. Run systems with the frame's evaluation times
// 4. Drain commands again (stops inserted by systems this frame)
// 5. Run every timeline's sinks in declaration order
// 6. Collect pruned batches and hand the report to the Recorder
//
// Stops enqueued after step 4 are observed on the next frame's crossing.
// They are never lost, only deferred by one frame.
//
// CRITICAL PATTERNS:
//
// Command Passing:
// External systems never touch ledgers directly. Enqueue is safe from any
// goroutine and applies before the next evaluation pass.
//
// One Draw Per Causal Event:
// NewBatch draws a single BatchID for all stops of one causal event, so
// sibling ledgers prune together.
//
// Deterministic Scheduling:
// Timelines, systems and sinks run in registration order.
// No randomness, no concurrency, no non-determinism.
package engine
