// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package debugid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBreakpadRoundTrip(t *testing.T) {
	var raw [16]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	id := FromBytes(raw, 7)

	text := id.Breakpad()
	got, err := ParseBreakpad(text)
	require.NoError(t, err)
	require.Equal(t, id.Bytes(), got.Bytes())
	require.Equal(t, id.Age(), got.Age())
}

func TestParseBreakpadRejectsShort(t *testing.T) {
	_, err := ParseBreakpad("abc")
	require.ErrorIs(t, err, ErrInvalidBreakpadID)
}

func TestParseBreakpadZeroAge(t *testing.T) {
	id, err := ParseBreakpad("000102030405060708090A0B0C0D0E0F0")
	require.NoError(t, err)
	require.Equal(t, uint32(0), id.Age())
}

func TestFromELFBuildIDRoundTripsThroughBytes(t *testing.T) {
	buildID := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	id := FromELFBuildID(buildID, false)
	require.False(t, id.IsZero())
	require.Equal(t, id, FromBytes(id.Bytes(), id.Age()))
}

func TestIsZero(t *testing.T) {
	require.True(t, ID{}.IsZero())
	require.False(t, FromBytes([16]byte{1}, 0).IsZero())
}
