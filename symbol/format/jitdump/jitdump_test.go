// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package jitdump

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewell/profcore/symbol"
)

func buildJitdump(t *testing.T, pid uint32, timestamp uint64, mach uint32, loads []codeEntry, moves [][2]uint64) []byte {
	t.Helper()
	var buf bytes.Buffer

	hdr := header{
		Magic:     magicNative,
		Version:   1,
		TotalSize: 40,
		ElfMach:   mach,
		Pad1:      0,
		Pid:       pid,
		Timestamp: timestamp,
		Flags:     0,
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))

	for i, e := range loads {
		var body bytes.Buffer
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(pid)))    // pid
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(1)))      // tid
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint64(e.addr))) // vma
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint64(e.addr))) // code_addr
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint64(e.size))) // code_size
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint64(i)))      // code_index
		body.WriteString(e.name)
		body.WriteByte(0)

		rh := recordHeader{ID: recCodeLoad, TotalSize: uint32(16 + body.Len()), Timestamp: timestamp}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &rh))
		buf.Write(body.Bytes())
	}

	for _, mv := range moves {
		var body bytes.Buffer
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(pid))) // pid
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(1)))   // tid
		require.NoError(t, binary.Write(&body, binary.LittleEndian, mv[0]))       // old addr
		require.NoError(t, binary.Write(&body, binary.LittleEndian, mv[1]))       // new addr
		require.NoError(t, binary.Write(&body, binary.LittleEndian, uint64(0)))   // old code size

		rh := recordHeader{ID: recCodeMove, TotalSize: uint32(16 + body.Len()), Timestamp: timestamp}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &rh))
		buf.Write(body.Bytes())
	}

	return buf.Bytes()
}

func TestParseSingleCodeLoad(t *testing.T) {
	data := buildJitdump(t, 100, 1000, 0x3e, []codeEntry{{addr: 0x2000, size: 0x40, name: "jit_fn"}}, nil)

	m, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 1, m.SymbolCount())

	info, ok := m.Lookup(0x2010)
	require.True(t, ok)
	require.Equal(t, "jit_fn", info.Symbol.Name)
}

func TestParseRejectsShortHeader(t *testing.T) {
	_, err := Parse([]byte{0, 1, 2})
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := make([]byte, 40)
	_, err := Parse(data)
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestParseAppliesCodeMoveRelocation(t *testing.T) {
	data := buildJitdump(t, 100, 1000, 0x3e,
		[]codeEntry{{addr: 0x2000, size: 0x40, name: "jit_fn"}},
		[][2]uint64{{0x2000, 0x5000}})

	m, err := Parse(data)
	require.NoError(t, err)

	_, ok := m.Lookup(0x2010)
	require.False(t, ok)

	info, ok := m.Lookup(0x5010)
	require.True(t, ok)
	require.Equal(t, "jit_fn", info.Symbol.Name)
}

func TestLookupMiss(t *testing.T) {
	data := buildJitdump(t, 100, 1000, 0x3e, []codeEntry{{addr: 0x2000, size: 0x40, name: "jit_fn"}}, nil)
	m, err := Parse(data)
	require.NoError(t, err)

	_, ok := m.Lookup(0x9999)
	require.False(t, ok)
}

func TestComputeDebugIDDeterministic(t *testing.T) {
	id1 := computeDebugID(42, 1234, 0x3e)
	id2 := computeDebugID(42, 1234, 0x3e)
	id3 := computeDebugID(43, 1234, 0x3e)
	require.Equal(t, id1.Bytes(), id2.Bytes())
	require.NotEqual(t, id1.Bytes(), id3.Bytes())
}

func TestParseAlwaysReportsFramesUnavailable(t *testing.T) {
	data := buildJitdump(t, 1, 1, 0x3e, []codeEntry{{addr: 0x1000, size: 0x10, name: "f"}}, nil)
	m, err := Parse(data)
	require.NoError(t, err)

	info, ok := m.Lookup(0x1000)
	require.True(t, ok)
	require.Equal(t, symbol.FramesUnavailable, info.Frames.Kind)
}
