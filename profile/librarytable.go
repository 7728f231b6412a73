// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "github.com/tracewell/profcore/debugid"

// SymbolEntry is one row of a LibraryInfo's optional pre-populated
// symbol table (§3.1).
type SymbolEntry struct {
	AddressRVA uint32
	Size       *uint32
	Name       string
}

// LibraryInfo identifies a loaded binary. It is the identity key the
// symbolication engine looks up by (§3.2) and is also the payload a
// Profile's LibraryTable stores verbatim.
type LibraryInfo struct {
	Name      string
	DebugName string
	Path      string
	DebugPath string
	Arch      string // optional; empty if unknown

	DebugID debugid.ID
	CodeID  *debugid.CodeID // optional

	// SymbolTable, when present, lets frame resolution skip the
	// symbolication engine entirely (ingestion-time metadata, §2
	// System Overview).
	SymbolTable []SymbolEntry
}

// LibraryTable is the profile-global, non-deduplicated sequence of
// every LibraryInfo ever handed to HandleForLib (§3.1: "Two libraries
// with identical content are not deduplicated at the library level").
type LibraryTable struct {
	libs []LibraryInfo
}

// NewLibraryTable returns an empty LibraryTable.
func NewLibraryTable() *LibraryTable {
	return &LibraryTable{}
}

// HandleForLib appends info and returns its handle. Calling this
// twice with equal info returns two distinct handles by design; dedup
// happens at call sites (frame interning), not here.
func (t *LibraryTable) HandleForLib(info LibraryInfo) LibraryHandle {
	idx := LibraryHandle(len(t.libs))
	t.libs = append(t.libs, info)
	return idx
}

// Get returns the LibraryInfo behind handle.
func (t *LibraryTable) Get(handle LibraryHandle) LibraryInfo {
	return t.libs[handle]
}

// Len returns the number of libraries ever interned.
func (t *LibraryTable) Len() int {
	return len(t.libs)
}

// usedLibs is the lazily populated projection described in §4.1.4:
// only libraries actually referenced by a frame are ever emitted, in
// first-reference order.
type usedLibs struct {
	handles []LibraryHandle
	index   map[LibraryHandle]GlobalLibIndex
}

func newUsedLibs() *usedLibs {
	return &usedLibs{index: make(map[LibraryHandle]GlobalLibIndex)}
}

// indexForUsedLib returns handle's position in the used-libraries
// projection, appending it on first reference.
func (u *usedLibs) indexForUsedLib(handle LibraryHandle) GlobalLibIndex {
	if idx, ok := u.index[handle]; ok {
		return idx
	}
	idx := GlobalLibIndex(len(u.handles))
	u.handles = append(u.handles, handle)
	u.index[handle] = idx
	return idx
}
