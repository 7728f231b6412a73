// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "sort"

// libMapping is one entry of a LibMappings: the process-VM range
// [startAVMA, endAVMA) it covers, the relative address the library
// maps to at startAVMA, and which library it is.
type libMapping struct {
	startAVMA            uint64
	endAVMA              uint64
	relativeAddressStart uint32
	lib                  LibraryHandle
	unloaded             bool
}

// LibMappings is a sorted map from process-VM address ranges to
// library mappings (§3.1). Ranges never overlap at a given instant:
// AddLibMapping with a start_avma matching an existing entry replaces
// it (invariant 5).
type LibMappings struct {
	mappings []libMapping // kept sorted by startAVMA
}

// NewLibMappings returns an empty LibMappings.
func NewLibMappings() *LibMappings {
	return &LibMappings{}
}

// AddLibMapping inserts (or replaces) the mapping for [startAVMA,
// endAVMA) starting at the given relative address within lib.
func (m *LibMappings) AddLibMapping(startAVMA, endAVMA uint64, relativeAddressStart uint32, lib LibraryHandle) {
	m.RemoveLibMapping(startAVMA)
	i := sort.Search(len(m.mappings), func(i int) bool {
		return m.mappings[i].startAVMA >= startAVMA
	})
	entry := libMapping{
		startAVMA:            startAVMA,
		endAVMA:              endAVMA,
		relativeAddressStart: relativeAddressStart,
		lib:                  lib,
	}
	m.mappings = append(m.mappings, libMapping{})
	copy(m.mappings[i+1:], m.mappings[i:])
	m.mappings[i] = entry
}

// RemoveLibMapping deletes the entry whose range starts at startAVMA,
// if any (§3.1 "remove_lib_mapping(start_avma)").
func (m *LibMappings) RemoveLibMapping(startAVMA uint64) {
	for i, e := range m.mappings {
		if e.startAVMA == startAVMA {
			m.mappings = append(m.mappings[:i], m.mappings[i+1:]...)
			return
		}
	}
}

// UnloadLibMapping marks the entry starting at startAVMA as unloaded
// without physically removing it from the backing slice, per the
// append-only-tables lifecycle rule (§3.1 "Lifecycles"). Unloaded
// mappings are invisible to Lookup.
func (m *LibMappings) UnloadLibMapping(startAVMA uint64) {
	for i := range m.mappings {
		if m.mappings[i].startAVMA == startAVMA {
			m.mappings[i].unloaded = true
			return
		}
	}
}

// Lookup finds the mapping covering avma and returns the translated
// relative address plus the owning library handle.
func (m *LibMappings) Lookup(avma uint64) (relativeAddress uint32, lib LibraryHandle, ok bool) {
	i := sort.Search(len(m.mappings), func(i int) bool {
		return m.mappings[i].startAVMA > avma
	})
	if i == 0 {
		return 0, 0, false
	}
	e := m.mappings[i-1]
	if e.unloaded || avma < e.startAVMA || avma >= e.endAVMA {
		return 0, 0, false
	}
	return uint32(avma-e.startAVMA) + e.relativeAddressStart, e.lib, true
}
