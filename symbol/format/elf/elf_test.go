// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package elf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// elfSym is a trimmed Elf64_Sym for test-fixture construction.
type elfSym struct {
	NameOff uint32
	Info    uint8
	Other   uint8
	Shndx   uint16
	Value   uint64
	Size    uint64
}

const (
	sttFunc   = 2
	stbGlobal = 1
)

// buildMinimalELF assembles a tiny ELF64 little-endian image with a
// .text section, a .symtab/.strtab pair describing syms, and
// (optionally) a .note.gnu.build-id section, following the layout
// debug/elf expects (section header string table + linked symtab).
func buildMinimalELF(t *testing.T, syms []struct {
	name  string
	value uint64
	size  uint64
}, buildID []byte) []byte {
	t.Helper()

	const (
		shtNull     = 0
		shtProgbits = 1
		shtSymtab   = 2
		shtStrtab   = 3
		shtNote     = 7
	)

	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	addShStr := func(s string) uint32 {
		off := uint32(shstrtab.Len())
		shstrtab.WriteString(s)
		shstrtab.WriteByte(0)
		return off
	}
	textNameOff := addShStr(".text")
	symtabNameOff := addShStr(".symtab")
	strtabNameOff := addShStr(".strtab")
	shstrtabNameOff := addShStr(".shstrtab")
	var buildIDNameOff uint32
	if buildID != nil {
		buildIDNameOff = addShStr(".note.gnu.build-id")
	}

	var strtab bytes.Buffer
	strtab.WriteByte(0)
	symEntries := []elfSym{{}} // index 0 is the null symbol
	for _, s := range syms {
		nameOff := uint32(strtab.Len())
		strtab.WriteString(s.name)
		strtab.WriteByte(0)
		symEntries = append(symEntries, elfSym{
			NameOff: nameOff,
			Info:    sttFunc | (stbGlobal << 4),
			Shndx:   1, // .text
			Value:   s.value,
			Size:    s.size,
		})
	}
	var symtab bytes.Buffer
	for _, se := range symEntries {
		binary.Write(&symtab, binary.LittleEndian, se.NameOff)
		binary.Write(&symtab, binary.LittleEndian, se.Info)
		binary.Write(&symtab, binary.LittleEndian, se.Other)
		binary.Write(&symtab, binary.LittleEndian, se.Shndx)
		binary.Write(&symtab, binary.LittleEndian, se.Value)
		binary.Write(&symtab, binary.LittleEndian, se.Size)
	}

	text := make([]byte, 0x200)

	var note bytes.Buffer
	if buildID != nil {
		binary.Write(&note, binary.LittleEndian, uint32(4))              // namesz ("GNU\0")
		binary.Write(&note, binary.LittleEndian, uint32(len(buildID)))   // descsz
		binary.Write(&note, binary.LittleEndian, uint32(3))              // NT_GNU_BUILD_ID
		note.WriteString("GNU\x00")
		note.Write(buildID)
		for note.Len()%4 != 0 {
			note.WriteByte(0)
		}
	}

	const ehsize = 64
	const shentsize = 64

	type section struct {
		nameOff uint32
		typ     uint32
		addr    uint64
		offset  uint64
		size    uint64
		link    uint32
		entsize uint64
		data    []byte
	}
	sections := []section{
		{}, // null section
		{nameOff: textNameOff, typ: shtProgbits, addr: 0x1000, data: text},
	}
	symtabIdx := uint32(len(sections))
	sections = append(sections, section{nameOff: symtabNameOff, typ: shtSymtab, link: symtabIdx + 1, entsize: 24, data: symtab.Bytes()})
	sections = append(sections, section{nameOff: strtabNameOff, typ: shtStrtab, data: strtab.Bytes()})
	shstrtabIdx := uint32(len(sections))
	sections = append(sections, section{nameOff: shstrtabNameOff, typ: shtStrtab, data: shstrtab.Bytes()})
	var buildIDIdx uint32
	if buildID != nil {
		buildIDIdx = uint32(len(sections))
		sections = append(sections, section{nameOff: buildIDNameOff, typ: shtNote, data: note.Bytes()})
	}
	_ = buildIDIdx

	// Lay out section data after the ELF header.
	offset := uint64(ehsize)
	for i := range sections {
		if i == 0 {
			continue
		}
		sections[i].offset = offset
		offset += uint64(len(sections[i].data))
	}
	shoff := offset

	var buf bytes.Buffer
	// e_ident
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	buf.Write(make([]byte, 8))
	binary.Write(&buf, binary.LittleEndian, uint16(2))      // e_type = ET_EXEC
	binary.Write(&buf, binary.LittleEndian, uint16(0x3e))   // e_machine = EM_X86_64
	binary.Write(&buf, binary.LittleEndian, uint32(1))      // e_version
	binary.Write(&buf, binary.LittleEndian, uint64(0))      // e_entry
	binary.Write(&buf, binary.LittleEndian, uint64(0))      // e_phoff
	binary.Write(&buf, binary.LittleEndian, shoff)          // e_shoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // e_flags
	binary.Write(&buf, binary.LittleEndian, uint16(ehsize)) // e_ehsize
	binary.Write(&buf, binary.LittleEndian, uint16(0))      // e_phentsize
	binary.Write(&buf, binary.LittleEndian, uint16(0))      // e_phnum
	binary.Write(&buf, binary.LittleEndian, uint16(shentsize))
	binary.Write(&buf, binary.LittleEndian, uint16(len(sections)))
	binary.Write(&buf, binary.LittleEndian, uint16(shstrtabIdx))
	require.Equal(t, ehsize, buf.Len())

	for _, s := range sections {
		buf.Write(s.data)
	}
	for _, s := range sections {
		binary.Write(&buf, binary.LittleEndian, s.nameOff)
		binary.Write(&buf, binary.LittleEndian, s.typ)
		binary.Write(&buf, binary.LittleEndian, uint64(0)) // sh_flags
		binary.Write(&buf, binary.LittleEndian, s.addr)
		binary.Write(&buf, binary.LittleEndian, s.offset)
		binary.Write(&buf, binary.LittleEndian, uint64(len(s.data)))
		binary.Write(&buf, binary.LittleEndian, s.link)
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // sh_info
		binary.Write(&buf, binary.LittleEndian, uint64(0)) // sh_addralign
		binary.Write(&buf, binary.LittleEndian, s.entsize)
	}

	return buf.Bytes()
}

func TestParseLookupByAddressAndSize(t *testing.T) {
	data := buildMinimalELF(t, []struct {
		name  string
		value uint64
		size  uint64
	}{{name: "foo", value: 0x1000, size: 0x40}}, nil)

	m, err := Parse(data, nil)
	require.NoError(t, err)
	require.Equal(t, 1, m.SymbolCount())

	info, ok := m.Lookup(0x1020)
	require.True(t, ok)
	require.Equal(t, uint32(0x1000), info.Symbol.Address)
	require.Equal(t, "foo", info.Symbol.Name)
	require.NotNil(t, info.Symbol.Size)
	require.Equal(t, uint32(0x40), *info.Symbol.Size)

	_, ok = m.Lookup(0x0FFF)
	require.False(t, ok)

	_, ok = m.Lookup(0x1040) // one past end, size-bounded
	require.False(t, ok)
}

func TestParseUsesBuildIDForIdentity(t *testing.T) {
	buildID := bytes.Repeat([]byte{0xAB}, 20)
	data := buildMinimalELF(t, nil, buildID)

	m, err := Parse(data, nil)
	require.NoError(t, err)
	require.NotEqual(t, [16]byte{}, m.DebugID().Bytes())
}

func TestParseFallsBackToTextHashWithoutBuildID(t *testing.T) {
	data := buildMinimalELF(t, nil, nil)

	m, err := Parse(data, nil)
	require.NoError(t, err)
	require.NotEqual(t, [16]byte{}, m.DebugID().Bytes())
}

func TestIterSymbolsYieldsInAddressOrder(t *testing.T) {
	data := buildMinimalELF(t, []struct {
		name  string
		value uint64
		size  uint64
	}{
		{name: "b", value: 0x1100, size: 0x10},
		{name: "a", value: 0x1000, size: 0x10},
	}, nil)

	m, err := Parse(data, nil)
	require.NoError(t, err)

	var names []string
	m.IterSymbols(func(rva uint32, name string) bool {
		names = append(names, name)
		return true
	})
	require.Equal(t, []string{"a", "b"}, names)
}
