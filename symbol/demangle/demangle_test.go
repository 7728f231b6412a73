// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package demangle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameItanium(t *testing.T) {
	got := Name("_Z3foov")
	require.Equal(t, "foo", got)
}

func TestNameItaniumNested(t *testing.T) {
	got := Name("_ZN3ns13barEv")
	require.Equal(t, "ns1::bar", got)
}

func TestNameMSVC(t *testing.T) {
	got := Name("?bar@foo@@YAXXZ")
	require.Equal(t, "foo::bar", got)
}

func TestNameOCaml(t *testing.T) {
	got := Name("camlFoo__bar_123")
	require.Equal(t, "Foo.bar_123", got)
}

func TestNameStripsLeadingUnderscore(t *testing.T) {
	require.Equal(t, "main", Name("_main"))
}

func TestNameUnmangledPassesThrough(t *testing.T) {
	require.Equal(t, "plain_name", Name("plain_name"))
}
