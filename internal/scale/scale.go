// Package scale produces the deterministic sequence of input sizes and
// payloads a profiling request measures.
package scale

import "fmt"

// Spec is one (input size, synthesized payload) pair. Immutable once
// generated.
type Spec struct {
	N       int
	Payload []byte
}

// PayloadFunc synthesizes the stdin payload for one input size. Task shapes
// with structured input supply their own; DefaultPayload covers the common
// single-parameter case.
type PayloadFunc func(n int) []byte

// DefaultPayload encodes the scale as a single leading numeric token.
func DefaultPayload(n int) []byte {
	return []byte(fmt.Sprintf("%d\n", n))
}

// Generate returns the measurement sequence for one profiling request:
// the corner scales first, in the order given, then every ladder value
// not exceeding nMax, ascending. Identical inputs always yield identical
// specs, payload bytes included.
func Generate(corner, ladder []int, nMax int, payload PayloadFunc) []Spec {
	if payload == nil {
		payload = DefaultPayload
	}
	specs := make([]Spec, 0, len(corner)+len(ladder))
	for _, n := range corner {
		specs = append(specs, Spec{N: n, Payload: payload(n)})
	}
	for _, n := range ladder {
		if n > nMax {
			continue
		}
		specs = append(specs, Spec{N: n, Payload: payload(n)})
	}
	return specs
}

// Sizes projects the spec sequence onto its input sizes, preserving order.
func Sizes(specs []Spec) []int {
	sizes := make([]int, len(specs))
	for i, s := range specs {
		sizes[i] = s.N
	}
	return sizes
}
