// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

// FuncFlags is a bitset of per-function flags.
type FuncFlags uint8

const (
	FuncIsJS FuncFlags = 1 << iota
)

// funcKey is the dedup key for FuncTable: (name, file, lib, flags)
// (§3.1).
type funcKey struct {
	name    StringIndex
	file    StringIndex
	hasFile bool
	lib     LibraryHandle
	hasLib  bool
	flags   FuncFlags
}

// FuncTable is a per-thread table of functions (§3.1).
type FuncTable struct {
	name     []StringIndex
	file     []StringIndex
	hasFile  []bool
	resource []ResourceIndex
	hasRes   []bool
	flags    []FuncFlags

	// lib is kept alongside name/file purely to compute the dedup key
	// and the resource column; it is not itself a serialized column
	// (the resource column derives from it, §4.1.3).
	lib    []LibraryHandle
	hasLib []bool

	index map[funcKey]FuncIndex
}

// NewFuncTable returns an empty FuncTable.
func NewFuncTable() *FuncTable {
	return &FuncTable{index: make(map[funcKey]FuncIndex)}
}

// FuncParams describes a function to intern via HandleForFunc.
type FuncParams struct {
	Name    StringIndex
	File    *StringIndex
	Lib     *LibraryHandle
	Flags   FuncFlags
}

// HandleForFunc interns a function, returning its stable handle. The
// resource column is populated lazily at serialize time from Lib via
// ResourceTable.resourceForLib (§4.1.3).
func (t *FuncTable) HandleForFunc(p FuncParams) FuncIndex {
	key := funcKey{name: p.Name, flags: p.Flags}
	if p.File != nil {
		key.file = *p.File
		key.hasFile = true
	}
	if p.Lib != nil {
		key.lib = *p.Lib
		key.hasLib = true
	}
	if idx, ok := t.index[key]; ok {
		return idx
	}
	idx := FuncIndex(len(t.name))
	t.name = append(t.name, p.Name)
	t.file = append(t.file, key.file)
	t.hasFile = append(t.hasFile, key.hasFile)
	t.resource = append(t.resource, 0)
	t.hasRes = append(t.hasRes, false)
	t.lib = append(t.lib, key.lib)
	t.hasLib = append(t.hasLib, key.hasLib)
	t.flags = append(t.flags, p.Flags)
	t.index[key] = idx
	return idx
}

// Len returns the number of function rows.
func (t *FuncTable) Len() int { return len(t.name) }

// Lib returns the library a function belongs to, if any.
func (t *FuncTable) Lib(idx FuncIndex) (LibraryHandle, bool) {
	return t.lib[idx], t.hasLib[idx]
}

// Name returns a function's name handle.
func (t *FuncTable) Name(idx FuncIndex) StringIndex {
	return t.name[idx]
}

// File returns a function's file handle, if any.
func (t *FuncTable) File(idx FuncIndex) (StringIndex, bool) {
	return t.file[idx], t.hasFile[idx]
}

// Flags returns a function's flag bitset.
func (t *FuncTable) Flags(idx FuncIndex) FuncFlags {
	return t.flags[idx]
}

// SetResource records the resolved ResourceIndex for a function (used
// by the derived-column pass, §4.1.3).
func (t *FuncTable) SetResource(idx FuncIndex, res ResourceIndex) {
	t.resource[idx] = res
	t.hasRes[idx] = true
}

// Resource returns the function's resolved resource, if any.
func (t *FuncTable) Resource(idx FuncIndex) (ResourceIndex, bool) {
	return t.resource[idx], t.hasRes[idx]
}
