// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

// ResourceType is the kind of a resource row. Only the library
// resource type is specified (§3.1); the constant spells that out
// explicitly so a future resource kind does not silently change
// meaning.
type ResourceType int

const ResourceTypeLib ResourceType = 0

// ResourceTable is a per-thread, one-entry-per-used-library table
// (§3.1). resourceForLib interns a resource the first time a library
// is referenced by a function.
type ResourceTable struct {
	lib   []LibraryHandle
	name  []StringIndex
	index map[LibraryHandle]ResourceIndex
}

// NewResourceTable returns an empty ResourceTable.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{index: make(map[LibraryHandle]ResourceIndex)}
}

// resourceForLib returns lib's ResourceIndex, interning a new row on
// first reference (§4.1.3).
func (t *ResourceTable) resourceForLib(lib LibraryHandle, name StringIndex) ResourceIndex {
	if idx, ok := t.index[lib]; ok {
		return idx
	}
	idx := ResourceIndex(len(t.lib))
	t.lib = append(t.lib, lib)
	t.name = append(t.name, name)
	t.index[lib] = idx
	return idx
}

// Len returns the number of resource rows.
func (t *ResourceTable) Len() int { return len(t.lib) }
