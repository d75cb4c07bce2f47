package adapter

import "github.com/roach88/rewind/internal/timeline"

// Node is one evaluation step producing a T per frame.
type Node[T any] interface {
	Evaluate(a *Arena, e timeline.EvaluationTime) T
}

// Handle addresses a node of output type T in an Arena.
// The zero Handle is invalid.
type Handle[T any] struct {
	id int
}

// HandleAt converts a raw node id back into a typed handle. The type is
// checked when the handle is evaluated.
func HandleAt[T any](id int) Handle[T] {
	return Handle[T]{id: id}
}

// ID returns the raw node id.
func (h Handle[T]) ID() int {
	return h.id
}

// Valid reports whether h was issued by an Arena.
func (h Handle[T]) Valid() bool {
	return h.id > 0
}

// Arena owns every node of a graph.
type Arena struct {
	nodes []any
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add appends n to the arena and returns its handle.
func Add[T any](a *Arena, n Node[T]) Handle[T] {
	a.nodes = append(a.nodes, n)
	return Handle[T]{id: len(a.nodes)}
}

// Eval pulls the node at h.
func Eval[T any](a *Arena, h Handle[T], e timeline.EvaluationTime) T {
	return Lookup(a, h).Evaluate(a, e)
}

// Lookup returns the node at h.
func Lookup[T any](a *Arena, h Handle[T]) Node[T] {
	if h.id <= 0 || h.id > len(a.nodes) {
		timeline.Fatal(timeline.ErrCodeMissingNode, "", "node %d not in arena of %d", h.id, len(a.nodes))
	}
	n, ok := a.nodes[h.id-1].(Node[T])
	if !ok {
		var zero T
		timeline.Fatal(timeline.ErrCodeTypeMismatch, "", "node %d is %T, want output %T", h.id, a.nodes[h.id-1], zero)
	}
	return n
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}
