// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package pathmapper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapRustc(t *testing.T) {
	m := New()
	got, ok := m.Map(`/rustc/a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2/library/std/src/panic.rs`)
	require.True(t, ok)
	require.Equal(t, "git:github.com/rust-lang/rust:library/std/src/panic.rs:a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2", got)
}

func TestMapRustcRejectsShortRevision(t *testing.T) {
	m := New()
	_, ok := m.Map(`/rustc/deadbeef/library/std/src/panic.rs`)
	require.False(t, ok)
}

func TestMapCargo(t *testing.T) {
	m := New()
	got, ok := m.Map(`/home/user/.cargo/registry/src/index.crates.io-1234/serde-1.0.188/src/lib.rs`)
	require.True(t, ok)
	require.Equal(t, "cargo:index.crates.io-1234:serde-1.0.188:src/lib.rs", got)
}

func TestMapCargoNormalizesWindowsSeparators(t *testing.T) {
	m := New()
	got, ok := m.Map(`C:\Users\me\.cargo\registry\src\github.com-abc\rand-0.8.5\src\rngs\mod.rs`)
	require.True(t, ok)
	require.Equal(t, `cargo:github.com-abc:rand-0.8.5:src/rngs/mod.rs`, got)
}

func TestMapNoRuleMatches(t *testing.T) {
	m := New()
	got, ok := m.Map("/home/user/project/main.rs")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestMapExtraMapperTriesFirst(t *testing.T) {
	calledBuiltin := false
	extra := func(path string) (string, bool) {
		if path == "/rustc/a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2/special.rs" {
			return "extra:special", true
		}
		return "", false
	}
	m := New(extra)

	// The built-in rustc rule would also match this path.
	got, ok := m.Map("/rustc/a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2/special.rs")
	require.True(t, ok)
	require.Equal(t, "extra:special", got)

	got, ok = m.Map(`/rustc/a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2/src/main.rs`)
	require.True(t, ok)
	require.Equal(t, "git:github.com/rust-lang/rust:src/main.rs:a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2", got)
	require.False(t, calledBuiltin) // extra mapper never matched this path itself, builtin did
}

func TestMapMemoizesResult(t *testing.T) {
	calls := 0
	extra := func(path string) (string, bool) {
		calls++
		return "mapped:" + path, true
	}
	m := New(extra)

	got1, ok1 := m.Map("/x/y.rs")
	got2, ok2 := m.Map("/x/y.rs")
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, got1, got2)
	require.Equal(t, 1, calls)
}

func TestMapMemoizesMiss(t *testing.T) {
	calls := 0
	extra := func(path string) (string, bool) {
		calls++
		return "", false
	}
	m := New(extra)

	_, ok1 := m.Map("/no/match.rs")
	_, ok2 := m.Map("/no/match.rs")
	require.False(t, ok1)
	require.False(t, ok2)
	require.Equal(t, 1, calls)
}
