// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "github.com/cespare/xxhash/v2"

// StringTable deduplicates strings behind stable handles. The same
// content always maps to the same StringIndex for the lifetime of the
// table (§3.1, §4.1.1).
//
// Dedup is keyed by an xxhash fingerprint bucketed into a slice of
// candidate indices, the way high-throughput profiling agents intern
// symbol strings (the xxhash dependency is carried from the wider
// example pack; see SPEC_FULL.md §3), with an exact string compare to
// resolve the rare collision.
type StringTable struct {
	strings []string
	buckets map[uint64][]StringIndex
}

// NewStringTable returns an empty StringTable.
func NewStringTable() *StringTable {
	return &StringTable{
		buckets: make(map[uint64][]StringIndex),
	}
}

// HandleForString interns s, returning its stable handle.
func (t *StringTable) HandleForString(s string) StringIndex {
	h := xxhash.Sum64String(s)
	for _, idx := range t.buckets[h] {
		if t.strings[idx] == s {
			return idx
		}
	}
	idx := StringIndex(len(t.strings))
	t.strings = append(t.strings, s)
	t.buckets[h] = append(t.buckets[h], idx)
	return idx
}

// GetString returns the string behind idx. It panics on an out-of-range
// handle, which can only happen on caller error (handles are never
// fabricated outside of HandleForString).
func (t *StringTable) GetString(idx StringIndex) string {
	return t.strings[idx]
}

// Len returns the number of interned strings.
func (t *StringTable) Len() int {
	return len(t.strings)
}

// Strings returns the interned strings in handle order. The returned
// slice must not be mutated by the caller.
func (t *StringTable) Strings() []string {
	return t.strings
}
