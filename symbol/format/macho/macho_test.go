// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package macho

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewell/profcore/debugid"
)

const (
	machMagic64  = 0xfeedfacf
	fatMagic     = 0xcafebabe
	cpuTypeArm64 = 0x0100000c
	cpuTypeX8664 = 0x01000007
	lcUUID       = 0x1b
	lcSymtab     = 0x2
)

func buildMachO64(t *testing.T, cputype uint32, uuid [16]byte, syms []struct {
	name  string
	value uint64
}) []byte {
	t.Helper()

	var strtab bytes.Buffer
	strtab.WriteByte(0)
	var symtab bytes.Buffer
	for _, s := range syms {
		nameOff := uint32(strtab.Len())
		strtab.WriteString(s.name)
		strtab.WriteByte(0)
		binary.Write(&symtab, binary.LittleEndian, nameOff)
		symtab.WriteByte(0x0f) // N_SECT | N_EXT, no stab bits
		symtab.WriteByte(1)    // n_sect
		binary.Write(&symtab, binary.LittleEndian, uint16(0)) // n_desc
		binary.Write(&symtab, binary.LittleEndian, s.value)
	}

	const headerSize = 32
	const uuidCmdSize = 24
	const symtabCmdSize = 24
	symoff := uint32(headerSize + uuidCmdSize + symtabCmdSize)
	stroff := symoff + uint32(symtab.Len())

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(machMagic64))
	binary.Write(&buf, binary.LittleEndian, cputype)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // cpusubtype
	binary.Write(&buf, binary.LittleEndian, uint32(2)) // filetype MH_EXECUTE
	binary.Write(&buf, binary.LittleEndian, uint32(2)) // ncmds
	binary.Write(&buf, binary.LittleEndian, uint32(uuidCmdSize+symtabCmdSize))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // flags
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // reserved
	require.Equal(t, headerSize, buf.Len())

	binary.Write(&buf, binary.LittleEndian, uint32(lcUUID))
	binary.Write(&buf, binary.LittleEndian, uint32(uuidCmdSize))
	buf.Write(uuid[:])

	binary.Write(&buf, binary.LittleEndian, uint32(lcSymtab))
	binary.Write(&buf, binary.LittleEndian, uint32(symtabCmdSize))
	binary.Write(&buf, binary.LittleEndian, symoff)
	binary.Write(&buf, binary.LittleEndian, uint32(len(syms)))
	binary.Write(&buf, binary.LittleEndian, stroff)
	binary.Write(&buf, binary.LittleEndian, uint32(strtab.Len()))

	buf.Write(symtab.Bytes())
	buf.Write(strtab.Bytes())

	return buf.Bytes()
}

func TestParseSingleArchLooksUpByUUID(t *testing.T) {
	uuid := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	data := buildMachO64(t, cpuTypeArm64, uuid, []struct {
		name  string
		value uint64
	}{{name: "_foo", value: 0x1000}})

	m, err := Parse(data, nil)
	require.NoError(t, err)
	require.Equal(t, 1, m.SymbolCount())
	require.Equal(t, debugid.FromMachoUUID(uuid).Bytes(), m.DebugID().Bytes())

	info, ok := m.Lookup(0x1010)
	require.True(t, ok)
	require.Equal(t, "_foo", info.Symbol.Name)
}

func TestParseFatSelectsByArch(t *testing.T) {
	uuidArm := [16]byte{0xAA}
	uuidX86 := [16]byte{0xBB}
	armSlice := buildMachO64(t, cpuTypeArm64, uuidArm, []struct {
		name  string
		value uint64
	}{{name: "_arm_fn", value: 0x2000}})
	x86Slice := buildMachO64(t, cpuTypeX8664, uuidX86, []struct {
		name  string
		value uint64
	}{{name: "_x86_fn", value: 0x3000}})

	const fatHeaderSize = 8
	const fatArchSize = 20
	offset1 := uint32(fatHeaderSize + 2*fatArchSize)
	offset2 := offset1 + uint32(len(armSlice))

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(fatMagic))
	binary.Write(&buf, binary.BigEndian, uint32(2))

	binary.Write(&buf, binary.BigEndian, uint32(cpuTypeArm64))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, offset1)
	binary.Write(&buf, binary.BigEndian, uint32(len(armSlice)))
	binary.Write(&buf, binary.BigEndian, uint32(0))

	binary.Write(&buf, binary.BigEndian, uint32(cpuTypeX8664))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, offset2)
	binary.Write(&buf, binary.BigEndian, uint32(len(x86Slice)))
	binary.Write(&buf, binary.BigEndian, uint32(0))

	buf.Write(armSlice)
	buf.Write(x86Slice)

	maps, err := ParseFat(buf.Bytes(), nil)
	require.NoError(t, err)
	require.Len(t, maps, 2)

	found := map[[16]byte]bool{}
	for _, m := range maps {
		found[m.DebugID().Bytes()] = true
	}
	require.True(t, found[debugid.FromMachoUUID(uuidArm).Bytes()])
	require.True(t, found[debugid.FromMachoUUID(uuidX86).Bytes()])
}
