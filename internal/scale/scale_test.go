package scale_test

import (
	"bytes"
	"fmt"
	"testing"

	"scalebench/internal/scale"
)

var (
	corner = []int{0, 1}
	ladder = []int{1_000, 5_000, 10_000, 50_000, 100_000}
)

func TestGenerateCornerScalesFirst(t *testing.T) {
	for _, nMax := range []int{0, 1, 999, 1_000, 100_000, 10_000_000} {
		specs := scale.Generate(corner, ladder, nMax, nil)
		if len(specs) < 2 {
			t.Fatalf("nMax=%d: expected at least corner scales, got %d specs", nMax, len(specs))
		}
		if specs[0].N != 0 || specs[1].N != 1 {
			t.Errorf("nMax=%d: corner scales = %d,%d, want 0,1", nMax, specs[0].N, specs[1].N)
		}
	}
}

func TestGenerateFiltersLadder(t *testing.T) {
	tests := []struct {
		nMax int
		want []int
	}{
		{0, []int{0, 1}},
		{999, []int{0, 1}},
		{1_000, []int{0, 1, 1_000}},
		{60_000, []int{0, 1, 1_000, 5_000, 10_000, 50_000}},
		{100_000, []int{0, 1, 1_000, 5_000, 10_000, 50_000, 100_000}},
	}
	for _, tt := range tests {
		specs := scale.Generate(corner, ladder, tt.nMax, nil)
		got := scale.Sizes(specs)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("Generate(nMax=%d) sizes = %v, want %v", tt.nMax, got, tt.want)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := scale.Generate(corner, ladder, 100_000, nil)
	b := scale.Generate(corner, ladder, 100_000, nil)
	if len(a) != len(b) {
		t.Fatalf("lengths diverge: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].N != b[i].N || !bytes.Equal(a[i].Payload, b[i].Payload) {
			t.Errorf("spec %d diverges between identical generations", i)
		}
	}
}

func TestDefaultPayload(t *testing.T) {
	if got := string(scale.DefaultPayload(50_000)); got != "50000\n" {
		t.Errorf("DefaultPayload(50000) = %q, want %q", got, "50000\n")
	}
}

func TestGenerateCustomPayload(t *testing.T) {
	specs := scale.Generate(corner, ladder, 1_000, func(n int) []byte {
		return []byte(fmt.Sprintf("%d %d\n", n, n*2))
	})
	last := specs[len(specs)-1]
	if string(last.Payload) != "1000 2000\n" {
		t.Errorf("custom payload = %q", last.Payload)
	}
}
