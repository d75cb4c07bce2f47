// Package world is an in-process record store standing in for the external
// state that sinks write into.
//
// Records are addressed by RecordID and hold named fields. A field is either
// present with a value or absent; absence is itself observable state.
package world

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/rewind/internal/sink"
	"github.com/roach88/rewind/internal/timeline"
)

// RecordID names a record.
type RecordID string

// World holds records. Safe for concurrent use.
type World struct {
	mu      sync.RWMutex
	records map[RecordID]map[string]any
}

// New creates an empty world.
func New() *World {
	return &World{records: make(map[RecordID]map[string]any)}
}

// Insert creates record id with no fields. Inserting an existing record is a
// no-op.
func (w *World) Insert(id RecordID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.records[id]; !ok {
		w.records[id] = make(map[string]any)
	}
}

// Remove deletes record id and all its fields.
func (w *World) Remove(id RecordID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.records, id)
}

// Has reports whether record id exists.
func (w *World) Has(id RecordID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.records[id]
	return ok
}

// Get returns a field value and whether it is present.
// A missing record is fatal.
func (w *World) Get(id RecordID, field string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.record(id)[field]
	return v, ok
}

// Set writes a field. A missing record is fatal.
func (w *World) Set(id RecordID, field string, v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record(id)[field] = v
}

// Delete removes a field. A missing record is fatal.
func (w *World) Delete(id RecordID, field string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.record(id), field)
}

// Records returns the record ids in sorted order.
func (w *World) Records() []RecordID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Sorted(maps.Keys(w.records))
}

// Snapshot returns a copy of every record as a nested map suitable for
// ir.MarshalCanonical.
func (w *World) Snapshot() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]any, len(w.records))
	for id, fields := range w.records {
		out[string(id)] = maps.Clone(fields)
	}
	return out
}

// record must be called with mu held.
func (w *World) record(id RecordID) map[string]any {
	r, ok := w.records[id]
	if !ok {
		timeline.Fatal(timeline.ErrCodeMissingRecord, string(id), "record not in world")
	}
	return r
}

// FieldTarget adapts one record field to sink.Target.
type FieldTarget[T comparable] struct {
	w      *World
	record RecordID
	name   string
}

// Field returns a sink target for record.name. The field must hold T when
// present; any other type is fatal.
func Field[T comparable](w *World, record RecordID, name string) *FieldTarget[T] {
	return &FieldTarget[T]{w: w, record: record, name: name}
}

// Get implements sink.Target.
func (f *FieldTarget[T]) Get() (T, bool) {
	var zero T
	v, ok := f.w.Get(f.record, f.name)
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	if !ok {
		timeline.Fatal(timeline.ErrCodeTypeMismatch, string(f.record)+"."+f.name, "field holds %T, want %T", v, zero)
	}
	return tv, true
}

// Set implements sink.Target.
func (f *FieldTarget[T]) Set(v T) {
	f.w.Set(f.record, f.name, v)
}

// Remove implements sink.Target.
func (f *FieldTarget[T]) Remove() {
	f.w.Delete(f.record, f.name)
}

// Record returns the target record id.
func (f *FieldTarget[T]) Record() RecordID { return f.record }

// Name returns the target field name.
func (f *FieldTarget[T]) Name() string { return f.name }

var _ sink.Target[bool] = (*FieldTarget[bool])(nil)
