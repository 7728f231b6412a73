// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "testing"

func TestElideChainBelowThresholdPassesThrough(t *testing.T) {
	chain := make([]FrameIndex, elisionThreshold-1)
	for i := range chain {
		chain[i] = FrameIndex(i)
	}
	out := elideChain(chain)
	if len(out) != len(chain) {
		t.Fatalf("len(out) = %d, want %d (no elision below threshold)", len(out), len(chain))
	}
	for i, e := range out {
		if e.synthetic || e.frame != chain[i] {
			t.Fatalf("out[%d] = %+v, want pass-through of chain[%d] = %d", i, e, i, chain[i])
		}
	}
}

func TestElideChainLongStack(t *testing.T) {
	n := 600
	chain := make([]FrameIndex, n)
	for i := range chain {
		chain[i] = FrameIndex(i)
	}
	out := elideChain(chain)

	k := ((n - 300) / 200) * 200
	wantLen := elisionKeepEnds + 1 + (n - elisionKeepEnds - k)
	if len(out) != wantLen {
		t.Fatalf("len(out) = %d, want %d", len(out), wantLen)
	}

	for i := 0; i < elisionKeepEnds; i++ {
		if out[i].synthetic || out[i].frame != chain[i] {
			t.Fatalf("out[%d] = %+v, want pass-through leaf frame %d", i, out[i], chain[i])
		}
	}
	mid := out[elisionKeepEnds]
	if !mid.synthetic || mid.elidedCount != k {
		t.Fatalf("out[%d] = %+v, want synthetic entry with elidedCount %d", elisionKeepEnds, mid, k)
	}
	for i := elisionKeepEnds + k; i < n; i++ {
		outIdx := elisionKeepEnds + 1 + (i - elisionKeepEnds - k)
		if out[outIdx].synthetic || out[outIdx].frame != chain[i] {
			t.Fatalf("out[%d] = %+v, want pass-through root-most frame %d", outIdx, out[outIdx], chain[i])
		}
	}
}

func TestElidedLabelFormat(t *testing.T) {
	if got, want := elidedLabel(200), "(200 frames elided)"; got != want {
		t.Fatalf("elidedLabel(200) = %q, want %q", got, want)
	}
}
