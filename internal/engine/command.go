package engine

import "github.com/roach88/rewind/internal/timeline"

// TimelineID names an independent timeline.
type TimelineID string

// LedgerID names a registered stop ledger.
type LedgerID string

// Command is a request applied by the frame loop before evaluation.
//
// Command is a sealed interface: only types in this package implement it.
type Command interface {
	command()
}

// SeekCommand seeks, pauses or changes the scrub rate of one timeline.
// Nil fields are left unchanged.
type SeekCommand struct {
	Timeline  TimelineID
	T         *float64
	Paused    *bool
	ScrubRate *float64
}

// ScrubCommand begins or ends an operator scrub gesture. Begin caches the
// pause state and pauses; End restores it.
type ScrubCommand struct {
	Timeline TimelineID
	Begin    bool
	Rate     float64
}

// Stop is one stop of an InsertCommand.
type Stop struct {
	T        float64
	Value    any
	Disabled bool
}

// InsertCommand appends stops to a ledger under one batch.
type InsertCommand struct {
	Ledger LedgerID
	Batch  timeline.BatchID
	Stops  []Stop
}

func (SeekCommand) command()   {}
func (ScrubCommand) command()  {}
func (InsertCommand) command() {}

// Seek builds a SeekCommand moving tl to t.
func Seek(tl TimelineID, t float64) SeekCommand {
	return SeekCommand{Timeline: tl, T: &t}
}

// Pause builds a SeekCommand setting the pause flag of tl.
func Pause(tl TimelineID, paused bool) SeekCommand {
	return SeekCommand{Timeline: tl, Paused: &paused}
}

// Batch is a group of stop insertions sharing one BatchID, possibly across
// several ledgers. Build it with Engine.NewBatch and submit with Commit.
type Batch struct {
	ID      timeline.BatchID
	inserts []InsertCommand
}

// Add appends a stop for ledger to the batch.
func (b *Batch) Add(ledger LedgerID, t float64, v any) *Batch {
	return b.add(ledger, Stop{T: t, Value: v})
}

// AddDisabled appends a disabled stop for ledger to the batch.
func (b *Batch) AddDisabled(ledger LedgerID, t float64, v any) *Batch {
	return b.add(ledger, Stop{T: t, Value: v, Disabled: true})
}

func (b *Batch) add(ledger LedgerID, s Stop) *Batch {
	for i := range b.inserts {
		if b.inserts[i].Ledger == ledger {
			b.inserts[i].Stops = append(b.inserts[i].Stops, s)
			return b
		}
	}
	b.inserts = append(b.inserts, InsertCommand{Ledger: ledger, Batch: b.ID, Stops: []Stop{s}})
	return b
}

// Commands returns one InsertCommand per ledger, in first-use order.
func (b *Batch) Commands() []InsertCommand {
	return b.inserts
}
