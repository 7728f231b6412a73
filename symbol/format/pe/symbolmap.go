// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/symbol"
	"github.com/tracewell/profcore/symbol/pathmapper"
)

// ErrNoDebugDirectory is returned when a PE carries no CodeView debug
// directory entry, leaving no PDB identity to key symbolication on.
var ErrNoDebugDirectory = errors.New("pe: no CodeView debug directory entry present")

type peSymEntry struct {
	addr uint32
	name string
}

// symbolMap implements symbol.SymbolMap over a parsed PE file's COFF
// symbol table, keyed by the CodeView RSDS debug id.
type symbolMap struct {
	debugID debugid.ID
	syms    []peSymEntry // sorted by addr
	mapper  *pathmapper.Mapper
}

var _ symbol.SymbolMap = (*symbolMap)(nil)

// ParseSymbolMap opens a PE/COFF image in-memory and builds its
// SymbolMap, extracting the DebugID from the CodeView RSDS entry
// (GUID+age) and the address table from the COFF symbol table: file.go's
// Parse walks the DOS/NT/section headers, debug.go's parseDebugDirectory
// decodes the CodeView entry, and symbol.go's ParseCOFFSymbolTable reads
// the COFF symbol table.
func ParseSymbolMap(data []byte, mapper *pathmapper.Mapper) (symbol.SymbolMap, error) {
	f, err := NewBytes(data, &Options{Logger: nil})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return nil, err
	}

	id, err := debugIDFromFile(f)
	if err != nil {
		return nil, err
	}

	sm := &symbolMap{debugID: id, mapper: mapper}
	sm.syms = collectCOFFSymbols(f)
	return sm, nil
}

func debugIDFromFile(f *File) (debugid.ID, error) {
	for _, entry := range f.Debugs {
		if entry.Type != "CodeView" {
			continue
		}
		if pdb, ok := entry.Info.(CVInfoPDB70); ok {
			guid := encodePDBGUID(pdb.Signature)
			return debugid.FromPDB(guid, pdb.Age), nil
		}
	}
	return debugid.ID{}, ErrNoDebugDirectory
}

// encodePDBGUID serializes a GUID into the 16-byte mixed-endian layout
// a PDB stores it in: Data1 as little-endian u32, Data2/Data3 as
// little-endian u16, Data4 verbatim.
func encodePDBGUID(g GUID) [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[0:4], g.Data1)
	binary.LittleEndian.PutUint16(b[4:6], g.Data2)
	binary.LittleEndian.PutUint16(b[6:8], g.Data3)
	copy(b[8:16], g.Data4[:])
	return b
}

func collectCOFFSymbols(f *File) []peSymEntry {
	var out []peSymEntry
	for _, s := range f.COFF.SymbolTable {
		// Type 0x20 marks a function symbol (COFF derived type
		// "function", 2, shifted left four bits above the base type).
		if s.Type != 0x20 {
			continue
		}
		name := coffSymbolName(f, s)
		if name == "" {
			continue
		}
		out = append(out, peSymEntry{addr: s.Value, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].addr < out[j].addr })
	return out
}

// coffSymbolName resolves a COFFSymbol's name, following the long-name
// union (first 4 bytes zero means the remaining 4 bytes are an offset
// into the string table).
func coffSymbolName(f *File, s COFFSymbol) string {
	if binary.LittleEndian.Uint32(s.Name[0:4]) != 0 {
		return cString(s.Name[:])
	}
	offset := binary.LittleEndian.Uint32(s.Name[4:8])
	if name, ok := f.COFF.StringTableM[offset]; ok {
		return name
	}
	return ""
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (m *symbolMap) SymbolCount() int    { return len(m.syms) }
func (m *symbolMap) DebugID() debugid.ID { return m.debugID }
func (m *symbolMap) Close() error        { return nil }

func (m *symbolMap) IterSymbols(yield func(rva uint32, name string) bool) {
	for _, s := range m.syms {
		if !yield(s.addr, s.name) {
			return
		}
	}
}

func (m *symbolMap) symAt(addr uint32) (peSymEntry, int, bool) {
	i := sort.Search(len(m.syms), func(i int) bool { return m.syms[i].addr > addr })
	if i == 0 {
		return peSymEntry{}, 0, false
	}
	return m.syms[i-1], i - 1, true
}

// Lookup resolves rva to the covering COFF function symbol. COFF
// symbol-table entries carry no size field, so the next symbol's
// address (if any) is used as an exclusive upper bound the way
// dispatch.go's callers expect a best-effort Size.
func (m *symbolMap) Lookup(rva uint32) (symbol.AddressInfo, bool) {
	s, i, ok := m.symAt(rva)
	if !ok {
		return symbol.AddressInfo{}, false
	}
	info := symbol.AddressInfo{
		Symbol: symbol.Symbol{Address: s.addr, Name: s.name},
		Frames: symbol.FramesLookupResult{Kind: symbol.FramesUnavailable},
	}
	if i+1 < len(m.syms) {
		size := m.syms[i+1].addr - s.addr
		info.Symbol.Size = &size
	}
	return info, true
}
