// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "fmt"

// elisionThreshold is the minimum chain length (leaf to root) at
// which §4.1.5 elision kicks in.
const elisionThreshold = 500

// elisionKeepEnds is how many leaf-most and root-most frames survive
// elision untouched.
const elisionKeepEnds = 200

// elidedChainEntry is one position in an elided leaf-to-root walk:
// either a pass-through reference to an original frame, or the single
// synthetic "elided" marker.
type elidedChainEntry struct {
	frame       FrameIndex
	synthetic   bool
	elidedCount int
}

// elideChain implements §4.1.5 exactly: below the threshold, every
// frame passes through unchanged; at or above it, the leaf-most 200
// and root-most (n-200-k) frames are kept and the middle k frames
// collapse into one synthetic entry, where
// k = ((n-300)/200)*200.
func elideChain(chain []FrameIndex) []elidedChainEntry {
	n := len(chain)
	if n < elisionThreshold {
		out := make([]elidedChainEntry, n)
		for i, f := range chain {
			out[i] = elidedChainEntry{frame: f}
		}
		return out
	}

	k := ((n - 300) / 200) * 200
	out := make([]elidedChainEntry, 0, elisionKeepEnds+1+(n-elisionKeepEnds-k))
	for i := 0; i < elisionKeepEnds; i++ {
		out = append(out, elidedChainEntry{frame: chain[i]})
	}
	out = append(out, elidedChainEntry{synthetic: true, elidedCount: k})
	for i := elisionKeepEnds + k; i < n; i++ {
		out = append(out, elidedChainEntry{frame: chain[i]})
	}
	return out
}

func elidedLabel(count int) string {
	return fmt.Sprintf("(%d frames elided)", count)
}
