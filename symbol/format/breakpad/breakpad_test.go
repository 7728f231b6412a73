// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package breakpad

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewell/profcore/symbol"
)

const sampleSym = `MODULE Linux x86_64 1234567890ABCDEF1234567890ABCDEF0 a.out
FILE 0 /src/main.c
FILE 1 /src/util.c
INLINE_ORIGIN 0 helper
FUNC 1000 20 0 main
1000 10 10 0
1010 10 11 1
INLINE 1 10 0 1 11 0
FUNC a0 5 0 unreachable
PUBLIC c0 0 exported_symbol
`

func TestParseBasicModule(t *testing.T) {
	m, err := Parse([]byte(sampleSym))
	require.NoError(t, err)
	require.Equal(t, "1234567890ABCDEF1234567890ABCDEF0", m.moduleID)
	require.Equal(t, 3, m.SymbolCount()) // 2 funcs + 1 public
}

func TestParseRejectsMalformedModule(t *testing.T) {
	_, err := Parse([]byte("MODULE Linux x86_64\n"))
	require.ErrorIs(t, err, ErrMalformedLine)
}

func TestParseRejectsInlineOutsideFunc(t *testing.T) {
	data := "MODULE Linux x86_64 1234567890ABCDEF1234567890ABCDEF0 a.out\nINLINE 1 10 0 1 11 0\n"
	_, err := Parse([]byte(data))
	require.ErrorIs(t, err, ErrMalformedLine)
}

func TestLookupFuncWithLineInfo(t *testing.T) {
	m, err := Parse([]byte(sampleSym))
	require.NoError(t, err)

	info, ok := m.Lookup(0x1000)
	require.True(t, ok)
	require.Equal(t, "main", info.Symbol.Name)
	require.Equal(t, symbol.FramesAvailable, info.Frames.Kind)
	require.Len(t, info.Frames.Frames, 1)
	require.Equal(t, "main", *info.Frames.Frames[0].Function)
	require.Equal(t, "/src/main.c", *info.Frames.Frames[0].FilePath)
}

func TestLookupFuncWithInlineExpandsChain(t *testing.T) {
	m, err := Parse([]byte(sampleSym))
	require.NoError(t, err)

	info, ok := m.Lookup(0x1010)
	require.True(t, ok)
	require.Equal(t, symbol.FramesAvailable, info.Frames.Kind)
	require.Len(t, info.Frames.Frames, 2)
	require.Equal(t, "helper", *info.Frames.Frames[0].Function)
	require.Equal(t, "main", *info.Frames.Frames[1].Function)
}

func TestLookupFuncWithoutLineInfo(t *testing.T) {
	m, err := Parse([]byte(sampleSym))
	require.NoError(t, err)

	info, ok := m.Lookup(0xa0)
	require.True(t, ok)
	require.Equal(t, "unreachable", info.Symbol.Name)
	require.Equal(t, symbol.FramesUnavailable, info.Frames.Kind)
}

func TestLookupPublicOnly(t *testing.T) {
	m, err := Parse([]byte(sampleSym))
	require.NoError(t, err)

	info, ok := m.Lookup(0xc0)
	require.True(t, ok)
	require.Equal(t, "exported_symbol", info.Symbol.Name)
	require.Equal(t, symbol.FramesUnavailable, info.Frames.Kind)
}

func TestLookupMiss(t *testing.T) {
	m, err := Parse([]byte(sampleSym))
	require.NoError(t, err)

	// Below every FUNC and PUBLIC; an address past the last PUBLIC
	// resolves to that PUBLIC, which carries no size.
	_, ok := m.Lookup(0x10)
	require.False(t, ok)
}

func TestIterSymbolsSkipsPublicsCoveredByFunc(t *testing.T) {
	m, err := Parse([]byte(sampleSym))
	require.NoError(t, err)

	var names []string
	m.IterSymbols(func(rva uint32, name string) bool {
		names = append(names, name)
		return true
	})
	require.Equal(t, []string{"unreachable", "main", "exported_symbol"}, names)
}

func TestBuildAndReadIndexRoundTrip(t *testing.T) {
	idx, err := BuildIndex([]byte(sampleSym))
	require.NoError(t, err)

	addrs, offsets, err := ReadIndex(idx)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	require.Len(t, offsets, 2)
	require.Equal(t, uint32(0xa0), addrs[0])
	require.Equal(t, uint32(0x1000), addrs[1])
}

func TestReadIndexRejectsBadMagic(t *testing.T) {
	_, _, err := ReadIndex([]byte("not an index at all"))
	require.ErrorIs(t, err, ErrBadIndex)
}

func TestReadIndexRejectsTruncatedData(t *testing.T) {
	idx, err := BuildIndex([]byte(sampleSym))
	require.NoError(t, err)

	_, _, err = ReadIndex(idx[:len(idx)-4])
	require.ErrorIs(t, err, ErrBadIndex)
}
