// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

// nativeSymbolKey dedups (GlobalLibIndex, symbol_address_rva) -> (name,
// size) per thread (§3.1).
type nativeSymbolKey struct {
	lib GlobalLibIndex
	rva uint32
}

// NativeSymbols is a per-thread dedup table mapping
// (GlobalLibIndex, symbol_address_rva) to a name and optional size.
type NativeSymbols struct {
	lib   []GlobalLibIndex
	rva   []uint32
	name  []StringIndex
	size  []uint32
	hasSz []bool

	index map[nativeSymbolKey]NativeSymbolIndex
}

// NewNativeSymbols returns an empty NativeSymbols table.
func NewNativeSymbols() *NativeSymbols {
	return &NativeSymbols{index: make(map[nativeSymbolKey]NativeSymbolIndex)}
}

// HandleForNativeSymbol interns a (lib, rva) pair.
func (t *NativeSymbols) HandleForNativeSymbol(lib GlobalLibIndex, rva uint32, name StringIndex, size *uint32) NativeSymbolIndex {
	key := nativeSymbolKey{lib: lib, rva: rva}
	if idx, ok := t.index[key]; ok {
		return idx
	}
	idx := NativeSymbolIndex(len(t.lib))
	t.lib = append(t.lib, lib)
	t.rva = append(t.rva, rva)
	t.name = append(t.name, name)
	if size != nil {
		t.size = append(t.size, *size)
		t.hasSz = append(t.hasSz, true)
	} else {
		t.size = append(t.size, 0)
		t.hasSz = append(t.hasSz, false)
	}
	t.index[key] = idx
	return idx
}

// Len returns the number of native symbol rows.
func (t *NativeSymbols) Len() int { return len(t.lib) }
