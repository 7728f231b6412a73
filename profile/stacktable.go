// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

// stackKey is the dedup key for a stack row: (prefix, frame) (§4.1.2).
type stackKey struct {
	prefix StackIndex // -1 means "no prefix" (root)
	frame  FrameIndex
}

// StackTable is a per-thread prefix tree of call stacks. Two parallel
// columns, prefix and frame, are stored; a stack's ancestors are found
// by walking prefix links to a root (prefix == -1) (§3.1).
type StackTable struct {
	prefix []StackIndex // -1 for roots
	frame  []FrameIndex

	// category is the derived column computed at serialize time
	// (§4.1.3); nil until computeStackCategories runs.
	category []SubcategoryHandle

	index map[stackKey]StackIndex
}

// noPrefix is the sentinel stored in the prefix column for root
// stacks.
const noPrefix StackIndex = -1

// NewStackTable returns an empty StackTable.
func NewStackTable() *StackTable {
	return &StackTable{index: make(map[stackKey]StackIndex)}
}

// HandleForStack interns (prefix, frame), returning the same
// StackIndex across calls with an equal key (§4.1.2, §8 idempotence).
// Pass prefix = -1 (noPrefix) for a root stack.
func (t *StackTable) HandleForStack(prefix StackIndex, frame FrameIndex) StackIndex {
	key := stackKey{prefix: prefix, frame: frame}
	if idx, ok := t.index[key]; ok {
		return idx
	}
	idx := StackIndex(len(t.frame))
	t.prefix = append(t.prefix, prefix)
	t.frame = append(t.frame, frame)
	t.index[key] = idx
	return idx
}

// Len returns the number of stack rows.
func (t *StackTable) Len() int {
	return len(t.frame)
}

// Prefix returns the prefix column value for idx (noPrefix for roots).
func (t *StackTable) Prefix(idx StackIndex) StackIndex {
	return t.prefix[idx]
}

// Frame returns the frame column value for idx.
func (t *StackTable) Frame(idx StackIndex) FrameIndex {
	return t.frame[idx]
}

// WalkToRoot yields frame indices from leaf (idx) to root, calling fn
// for each. This is the "stack prefix iterator" of §4.1.2.
func (t *StackTable) WalkToRoot(idx StackIndex, fn func(FrameIndex)) {
	for idx != noPrefix {
		fn(t.frame[idx])
		idx = t.prefix[idx]
	}
}

// Depth returns the number of frames from idx to the root, inclusive.
func (t *StackTable) Depth(idx StackIndex) int {
	n := 0
	t.WalkToRoot(idx, func(FrameIndex) { n++ })
	return n
}
