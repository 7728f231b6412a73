// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package elf implements symbol.SymbolMap over ELF binaries: the
// NT_GNU_BUILD_ID note for identity, .symtab/.dynsym for the address
// table, and DWARF .debug_line for one file:line frame per address (no
// inline expansion), following
// the debug/elf usage shown across the pack (e.g.
// zboralski-galago/internal/emulator/elf.go, ccfos-huatuo's
// internal/symbol/usymbols.go).
package elf

import (
	"bytes"
	stdelf "debug/elf"
	"errors"
	"fmt"
	"sort"

	"github.com/ulikunitz/xz"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/symbol"
	"github.com/tracewell/profcore/symbol/pathmapper"
)

// ErrNoBuildID names the case of a binary with no NT_GNU_BUILD_ID note.
// Parse does not return it: such a binary gets a content hash of .text
// as its identity instead (§4.2.4).
var ErrNoBuildID = errors.New("elf: no NT_GNU_BUILD_ID note present")

type symEntry struct {
	addr uint32
	size uint32
	name string
}

// Map implements symbol.SymbolMap over one open ELF file.
type Map struct {
	debugID debugid.ID
	syms    []symEntry // sorted by addr
	lines   *dwarfLines
	mapper  *pathmapper.Mapper
}

var _ symbol.SymbolMap = (*Map)(nil)

// Parse opens an in-memory ELF image and builds its Map, following
// debug/dwarf for line tables and github.com/ulikunitz/xz to inflate a
// compressed .gnu_debugdata MiniDebugInfo section when present.
func Parse(data []byte, mapper *pathmapper.Mapper) (*Map, error) {
	f, err := stdelf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &Map{mapper: mapper}
	m.debugID = identityFor(f, data)

	syms, err := collectSymbols(f)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		if mdi, ok := decompressMiniDebugInfo(f); ok {
			if f2, err := stdelf.NewFile(bytes.NewReader(mdi)); err == nil {
				defer f2.Close()
				syms, _ = collectSymbols(f2)
			}
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].addr < syms[j].addr })
	m.syms = syms

	if dw, err := f.DWARF(); err == nil {
		m.lines = buildLineTable(dw, mapper)
	}

	return m, nil
}

func identityFor(f *stdelf.File, raw []byte) debugid.ID {
	if sec := f.Section(".note.gnu.build-id"); sec != nil {
		if data, err := sec.Data(); err == nil {
			if id, ok := parseBuildIDNote(data); ok {
				return debugid.FromELFBuildID(id, byteOrderBig(f))
			}
		}
	}
	if sec := f.Section(".text"); sec != nil {
		if data, err := sec.Data(); err == nil {
			return debugid.FromTextHash(data, byteOrderBig(f))
		}
	}
	return debugid.FromTextHash(raw, byteOrderBig(f))
}

func byteOrderBig(f *stdelf.File) bool {
	return f.Data == stdelf.ELFDATA2MSB
}

// parseBuildIDNote extracts the build-id payload from a
// NT_GNU_BUILD_ID ELF note section's raw bytes.
func parseBuildIDNote(data []byte) ([]byte, bool) {
	for len(data) >= 12 {
		nameSz := le32(data[0:4])
		descSz := le32(data[4:8])
		noteType := le32(data[8:12])
		off := 12
		nameEnd := off + align4(int(nameSz))
		descStart := nameEnd
		descEnd := descStart + int(descSz)
		if descEnd > len(data) {
			return nil, false
		}
		if noteType == 3 { // NT_GNU_BUILD_ID
			return data[descStart:descEnd], true
		}
		data = data[align4(descEnd):]
	}
	return nil, false
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func align4(n int) int { return (n + 3) &^ 3 }

func collectSymbols(f *stdelf.File) ([]symEntry, error) {
	var out []symEntry
	add := func(syms []stdelf.Symbol) {
		for _, s := range syms {
			if stdelf.ST_TYPE(s.Info) != stdelf.STT_FUNC || s.Name == "" {
				continue
			}
			out = append(out, symEntry{addr: uint32(s.Value), size: uint32(s.Size), name: s.Name})
		}
	}
	if syms, err := f.Symbols(); err == nil {
		add(syms)
	}
	if dsyms, err := f.DynamicSymbols(); err == nil {
		add(dsyms)
	}
	return out, nil
}

// decompressMiniDebugInfo inflates the xz-compressed .gnu_debugdata
// section (an embedded MiniDebugInfo ELF carrying only .symtab/.strtab,
// §4.2.2 ELF). External debuglink/debugaltlink files are not opened.
func decompressMiniDebugInfo(f *stdelf.File) ([]byte, bool) {
	sec := f.Section(".gnu_debugdata")
	if sec == nil {
		return nil, false
	}
	raw, err := sec.Data()
	if err != nil {
		return nil, false
	}
	r, err := xz.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, false
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil && buf.Len() == 0 {
		return nil, false
	}
	return buf.Bytes(), true
}

func (m *Map) SymbolCount() int    { return len(m.syms) }
func (m *Map) DebugID() debugid.ID { return m.debugID }
func (m *Map) Close() error        { return nil }

func (m *Map) IterSymbols(yield func(rva uint32, name string) bool) {
	for _, s := range m.syms {
		if !yield(s.addr, s.name) {
			return
		}
	}
}

func (m *Map) symAt(addr uint32) *symEntry {
	i := sort.Search(len(m.syms), func(i int) bool { return m.syms[i].addr > addr })
	if i == 0 {
		return nil
	}
	s := &m.syms[i-1]
	if addr < s.addr || (s.size != 0 && addr >= s.addr+s.size) {
		return nil
	}
	return s
}

func (m *Map) Lookup(rva uint32) (symbol.AddressInfo, bool) {
	s := m.symAt(rva)
	if s == nil {
		return symbol.AddressInfo{}, false
	}
	size := s.size
	info := symbol.AddressInfo{
		Symbol: symbol.Symbol{Address: s.addr, Size: &size, Name: s.name},
		Frames: symbol.FramesLookupResult{Kind: symbol.FramesUnavailable},
	}
	if m.lines != nil {
		if frames, ok := m.lines.lookup(rva, s.name); ok {
			info.Frames = symbol.FramesLookupResult{Kind: symbol.FramesAvailable, Frames: frames}
		}
	}
	return info, true
}

// String returns a short description for debugging tools without
// implying a specific stringer contract beyond fmt.Stringer.
func (m *Map) String() string {
	return fmt.Sprintf("elf.Map{debugID=%s, symbols=%d}", m.debugID, len(m.syms))
}
