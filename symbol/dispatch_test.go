// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package symbol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSniffFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"elf", []byte{0x7F, 'E', 'L', 'F', 0, 0, 0, 0}, FormatELF},
		{"macho-64", []byte{0xFE, 0xED, 0xFA, 0xCF}, FormatMachO},
		{"macho-32", []byte{0xFE, 0xED, 0xFA, 0xCE}, FormatMachO},
		{"macho-fat", []byte{0xCA, 0xFE, 0xBA, 0xBE}, FormatMachOFat},
		{"macho-fat-swapped", []byte{0xBE, 0xBA, 0xFE, 0xCA}, FormatMachOFat},
		{"pe", []byte{'M', 'Z', 0x90, 0}, FormatPE},
		{"breakpad", []byte("MODULE Linux x86_64 000000000000 a.out\n"), FormatBreakpad},
		{"jitdump", []byte("JiTD\x01\x00\x00\x00"), FormatJitdump},
		{"unknown", []byte{0, 1, 2, 3}, FormatUnknown},
		{"empty", []byte{}, FormatUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SniffFormat(tc.data))
		})
	}
}

func TestSniffFormatPDB(t *testing.T) {
	data := append([]byte("Microsoft C/C++ MSF 7.00\r\n\x1ADS\x00\x00\x00"), 0, 0)
	require.Equal(t, FormatPDB, SniffFormat(data))
}

func TestNewSymbolMapFromBytesUnknownFormat(t *testing.T) {
	_, err := NewSymbolMapFromBytes([]byte{0, 1, 2, 3}, nil, nil)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNewSymbolMapFromBytesStandalonePDBRejected(t *testing.T) {
	data := append([]byte("Microsoft C/C++ MSF 7.00\r\n\x1ADS\x00\x00\x00"), 0, 0)
	_, err := NewSymbolMapFromBytes(data, nil, nil)
	require.ErrorIs(t, err, ErrPdbError)
}

func TestNewSymbolMapFromBytesMalformedELF(t *testing.T) {
	data := []byte{0x7F, 'E', 'L', 'F', 0, 0, 0, 0}
	_, err := NewSymbolMapFromBytes(data, nil, nil)
	require.ErrorIs(t, err, ErrObjectParse)
}
