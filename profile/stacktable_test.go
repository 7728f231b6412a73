// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "testing"

func TestStackTableDedupIdempotence(t *testing.T) {
	st := NewStackTable()

	root := st.HandleForStack(noPrefix, FrameIndex(0))
	child := st.HandleForStack(root, FrameIndex(1))

	rootAgain := st.HandleForStack(noPrefix, FrameIndex(0))
	childAgain := st.HandleForStack(root, FrameIndex(1))

	if root != rootAgain {
		t.Fatalf("re-interning root stack changed handle: %d != %d", root, rootAgain)
	}
	if child != childAgain {
		t.Fatalf("re-interning child stack changed handle: %d != %d", child, childAgain)
	}
	if st.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", st.Len())
	}

	// Same frame under a different prefix is a distinct row.
	other := st.HandleForStack(noPrefix, FrameIndex(1))
	if other == child {
		t.Fatalf("stacks with different prefixes collapsed to the same handle")
	}
}

func TestStackTableWalkToRootAndDepth(t *testing.T) {
	st := NewStackTable()
	root := st.HandleForStack(noPrefix, FrameIndex(10))
	mid := st.HandleForStack(root, FrameIndex(11))
	leaf := st.HandleForStack(mid, FrameIndex(12))

	var walked []FrameIndex
	st.WalkToRoot(leaf, func(f FrameIndex) { walked = append(walked, f) })

	want := []FrameIndex{12, 11, 10}
	if len(walked) != len(want) {
		t.Fatalf("walked %v, want %v", walked, want)
	}
	for i := range want {
		if walked[i] != want[i] {
			t.Fatalf("walked[%d] = %d, want %d", i, walked[i], want[i])
		}
	}
	if d := st.Depth(leaf); d != 3 {
		t.Fatalf("Depth(leaf) = %d, want 3", d)
	}
	if d := st.Depth(root); d != 1 {
		t.Fatalf("Depth(root) = %d, want 1", d)
	}
}
