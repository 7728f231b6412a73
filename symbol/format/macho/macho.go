// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package macho implements symbol.SymbolMap over Mach-O binaries,
// including fat (universal) archives, grounded on the debug/macho
// usage shown in golang-debug/internal/core/process.go from the pack.
package macho

import (
	stdmacho "debug/macho"
	"errors"
	"fmt"
	"sort"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/symbol"
	"github.com/tracewell/profcore/symbol/pathmapper"
)

// ErrNoUUID names the case of a Mach-O image with no LC_UUID load
// command. Parse does not return it: such an image gets a content hash
// as its identity instead.
var ErrNoUUID = errors.New("macho: no LC_UUID load command present")

type symEntry struct {
	addr uint32
	name string
}

// Map implements symbol.SymbolMap over one Mach-O image (a single
// architecture slice, never a fat archive — see ParseFat for that).
type Map struct {
	debugID debugid.ID
	syms    []symEntry // sorted by addr
	mapper  *pathmapper.Mapper
}

var _ symbol.SymbolMap = (*Map)(nil)

// Parse opens a single-architecture Mach-O image.
func Parse(data []byte, mapper *pathmapper.Mapper) (*Map, error) {
	f, err := stdmacho.NewFile(byteReaderAt(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fromFile(f, data, mapper)
}

// ParseFat opens a fat (universal) Mach-O archive and returns one Map
// per architecture slice, letting the caller disambiguate by DebugID
// when no want id narrows the format dispatch up front (§8 scenario
// 2, §4.2.1 item 4).
func ParseFat(data []byte, mapper *pathmapper.Mapper) ([]*Map, error) {
	fat, err := stdmacho.NewFatFile(byteReaderAt(data))
	if err != nil {
		return nil, err
	}
	defer fat.Close()

	out := make([]*Map, 0, len(fat.Arches))
	for _, arch := range fat.Arches {
		m, err := fromFile(arch.File, data, mapper)
		if err != nil {
			return nil, fmt.Errorf("macho: member %s: %w", arch.Cpu, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func fromFile(f *stdmacho.File, raw []byte, mapper *pathmapper.Mapper) (*Map, error) {
	m := &Map{mapper: mapper}
	m.debugID = identityFor(f, raw)

	var syms []symEntry
	if f.Symtab != nil {
		for _, s := range f.Symtab.Syms {
			if s.Name == "" || s.Value == 0 {
				continue
			}
			// N_STAB entries are debugger symbols (used for the
			// Mach-O "debug map", §4.2.2's ExternalFileAddressRef
			// source), not address-table entries.
			if s.Type&0xe0 != 0 {
				continue
			}
			syms = append(syms, symEntry{addr: uint32(s.Value), name: s.Name})
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].addr < syms[j].addr })
	m.syms = syms
	return m, nil
}

func identityFor(f *stdmacho.File, raw []byte) debugid.ID {
	if b, ok := uuidBytes(f); ok {
		return debugid.FromMachoUUID(b)
	}
	return debugid.FromTextHash(raw, f.ByteOrder.String() == "BigEndian")
}

func uuidBytes(f *stdmacho.File) ([16]byte, bool) {
	for _, l := range f.Loads {
		raw := l.Raw()
		// An LC_UUID load command is 24 bytes: cmd(4) cmdsize(4) uuid(16).
		if len(raw) == 24 {
			cmd := f.ByteOrder.Uint32(raw[0:4])
			if cmd == 0x1b { // LC_UUID
				var b [16]byte
				copy(b[:], raw[8:24])
				return b, true
			}
		}
	}
	return [16]byte{}, false
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

func (m *Map) symAt(addr uint32) (symEntry, bool) {
	i := sort.Search(len(m.syms), func(i int) bool { return m.syms[i].addr > addr })
	if i == 0 {
		return symEntry{}, false
	}
	return m.syms[i-1], true
}

// Lookup resolves rva to the nearest preceding exported symbol.
// Mach-O's N_FUN stab entries carry an explicit size for local
// functions; exported symbols from Symtab do not, so Size is left
// nil and callers relying on §8 scenario 1's size-aware lookup should
// prefer a format with exact sizes (ELF/PE) when available. Without a
// companion dSYM or a debug-map N_OSO stab to resolve, line info is
// simply unavailable (§4.2.3 item 5) rather than a fabricated external
// reference.
func (m *Map) Lookup(rva uint32) (symbol.AddressInfo, bool) {
	s, ok := m.symAt(rva)
	if !ok {
		return symbol.AddressInfo{}, false
	}
	return symbol.AddressInfo{
		Symbol: symbol.Symbol{Address: s.addr, Name: s.name},
		Frames: symbol.FramesLookupResult{Kind: symbol.FramesUnavailable},
	}, true
}

// byteReaderAt adapts a byte slice to io.ReaderAt for debug/macho's
// file-less constructors.
type byteReaderAtT struct{ b []byte }

func byteReaderAt(b []byte) *byteReaderAtT { return &byteReaderAtT{b: b} }

func (r *byteReaderAtT) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.b)) {
		return 0, fmt.Errorf("macho: read past end of buffer")
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, fmt.Errorf("macho: short read")
	}
	return n, nil
}
