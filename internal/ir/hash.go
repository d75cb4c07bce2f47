package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "rewind/graph/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash computes the content-addressed identity of a compiled graph.
// Two graphs with the same declarations in the same order hash equally;
// recorded runs carry it so a trace can be matched to its graph.
func GraphHash(g *GraphSpec) (string, error) {
	canonical, err := CanonicalGraph(g)
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// CanonicalGraph renders g as the canonical JSON its hash is computed over.
func CanonicalGraph(g *GraphSpec) ([]byte, error) {
	return MarshalCanonical(graphObject(g))
}

// MustGraphHash is like GraphHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGraphHash(g *GraphSpec) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}

// graphObject lowers a GraphSpec to the map form MarshalCanonical accepts.
func graphObject(g *GraphSpec) map[string]any {
	timelines := make([]any, len(g.Timelines))
	for i, tl := range g.Timelines {
		timelines[i] = map[string]any{
			"name":      tl.Name,
			"tick_rate": tl.TickRate,
			"start":     tl.Start,
			"paused":    tl.Paused,
		}
	}

	ledgers := make([]any, len(g.Ledgers))
	for i, l := range g.Ledgers {
		stops := make([]any, len(l.Stops))
		for j, s := range l.Stops {
			stops[j] = map[string]any{"t": s.T, "value": s.Value, "disabled": s.Disabled}
		}
		ledgers[i] = map[string]any{
			"name":     l.Name,
			"timeline": l.Timeline,
			"kind":     string(l.Kind),
			"optional": l.Optional,
			"stops":    stops,
		}
	}

	nodes := make([]any, len(g.Nodes))
	for i, n := range g.Nodes {
		segments := make([]any, len(n.Segments))
		for j, s := range n.Segments {
			segments[j] = map[string]any{"start": s.Start, "node": s.Node}
		}
		times := n.Times
		if times == nil {
			times = []float64{}
		}
		nodes[i] = map[string]any{
			"name":     n.Name,
			"type":     string(n.Type),
			"ledger":   n.Ledger,
			"input":    n.Input,
			"factor":   n.Factor,
			"kind":     string(n.Kind),
			"value":    n.Value,
			"clamp":    n.Clamp,
			"offset":   n.Offset,
			"rate":     n.Rate,
			"period":   n.Period,
			"at":       n.At,
			"ease":     n.Ease,
			"times":    times,
			"segments": segments,
		}
	}

	sinks := make([]any, len(g.Sinks))
	for i, s := range g.Sinks {
		sinks[i] = map[string]any{
			"name":     s.Name,
			"type":     string(s.Type),
			"node":     s.Node,
			"timeline": s.Timeline,
			"record":   s.Record,
			"field":    s.Field,
			"mode":     s.Mode,
		}
	}

	return map[string]any{
		"version":   GraphVersion,
		"timelines": timelines,
		"ledgers":   ledgers,
		"nodes":     nodes,
		"sinks":     sinks,
	}
}
