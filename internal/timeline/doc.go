// Package timeline implements the rewindable clock and the discrete stop ledger.
//
// A Clock owns one timeline's continuous time. Once per frame the engine
// advances it from the wall-clock delta and builds an EvaluationTime
// {t, prev_t, paused, prev_paused} that is threaded through every evaluation
// call of that frame.
//
// A Discrete[T] ledger holds the stops of one time-varying discrete property.
// Animate fires the stops crossed since the ledger was last evaluated, in
// either direction, so effects recorded at a timestamp replay exactly when the
// clock revisits it.
//
// CRITICAL PATTERNS:
//
// Batch-atomic pruning:
// Every stop carries the BatchID of the causal event that inserted it. On
// resume-from-pause, or on an unpaused rewind, a batch is deleted only when
// every one of its stops lies strictly after the new time. A batch that has
// partially happened is never half-erased, so ledgers updated by the same
// event (an entity's "alive" and "hp") always prune together.
//
// Determinism registry:
// BatchIDs come from an injected Registry. One id is drawn per causal event
// and shared by all stops that event inserts. Ids are never reset or reused.
//
// Nothing crossed:
// Animate returns ok=false when no stop was crossed. Callers must read that as
// "leave external state unchanged", never as "reset to a default".
//
// Fatal errors:
// Looking up something that does not exist, or a value of the wrong type, is a
// programmer error and panics with *FatalError. Degenerate inputs (empty
// ledger, single stop, negative clock result) are never errors.
package timeline
