// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package demangle implements the symbol-name demangling cascade used
// when rendering a looked-up symbol for display (§4.2.3): MSVC, then
// Rust (legacy and v0), then Itanium C++, then OCaml, falling back to
// the original name with any single leading underscore stripped.
package demangle

import "strings"

// Name demangles a raw symbol name using the cascade order from
// §4.2.3: "try MSVC (prefix ?), then Rust legacy and v0, then Itanium
// C++ (prefix _Z/__Z), then OCaml (prefix caml), else return the
// original string minus any leading underscore."
func Name(raw string) string {
	if strings.HasPrefix(raw, "?") {
		if d, ok := msvc(raw); ok {
			return d
		}
	}
	if d, ok := rust(raw); ok {
		return d
	}
	if strings.HasPrefix(raw, "_Z") || strings.HasPrefix(raw, "__Z") {
		if d, ok := itanium(raw); ok {
			return d
		}
	}
	if strings.HasPrefix(raw, "caml") {
		if d, ok := ocaml(raw); ok {
			return d
		}
	}
	return strings.TrimPrefix(raw, "_")
}

// msvc demangles a subset of the MSVC C++ name-mangling grammar: it
// recognizes simple qualified names of the form `?name@ns1@ns2@@...`
// and reassembles them as `ns2::ns1::name`, which is enough to make
// public-symbol output readable without a full MSVC-mangling parser.
// A name it cannot confidently parse is left for the next cascade
// step.
func msvc(raw string) (string, bool) {
	body := strings.TrimPrefix(raw, "?")
	at := strings.Index(body, "@@")
	if at < 0 {
		return "", false
	}
	parts := strings.Split(body[:at], "@")
	if len(parts) == 0 || parts[0] == "" {
		return "", false
	}
	name, ns := parts[0], parts[1:]
	for i, j := 0, len(ns)-1; i < j; i, j = i+1, j-1 {
		ns[i], ns[j] = ns[j], ns[i]
	}
	return strings.Join(append(ns, name), "::"), true
}

// rust recognizes the legacy `_ZN...17h<16 hex>E` and v0 `_R...`
// mangling schemes just enough to strip the disambiguating hash
// suffix legacy mangling appends; it defers to the Itanium demangler
// for the structural part since legacy Rust mangling is an Itanium
// C++ mangling dialect.
func rust(raw string) (string, bool) {
	if strings.HasPrefix(raw, "_R") {
		// v0 mangling: not structurally decoded here, returned as-is
		// minus the marker so callers at least see a stable name.
		return strings.TrimPrefix(raw, "_R"), true
	}
	if strings.HasPrefix(raw, "_ZN") && strings.Contains(raw, "17h") {
		demangled, ok := itanium(raw)
		if !ok {
			return "", false
		}
		if i := strings.LastIndex(demangled, "::h"); i >= 0 && len(demangled)-i == 19 {
			demangled = demangled[:i]
		}
		return demangled, true
	}
	return "", false
}

// itanium decodes the Itanium C++ ABI's compressed nested-name
// encoding: `_Z` / `__Z`, then repeated `<len><identifier>` segments
// (an `N...E` wrapper groups a nested name), joined with `::`.
func itanium(raw string) (string, bool) {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "__Z"), "_Z")
	if s == raw {
		return "", false
	}
	nested := false
	if strings.HasPrefix(s, "N") {
		nested = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 0 {
		if s[0] < '0' || s[0] > '9' {
			break
		}
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		n := 0
		for _, c := range s[:i] {
			n = n*10 + int(c-'0')
		}
		s = s[i:]
		if n <= 0 || n > len(s) {
			return "", false
		}
		parts = append(parts, s[:n])
		s = s[n:]
		if nested && strings.HasPrefix(s, "E") {
			s = s[1:]
			break
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "::"), true
}

// ocaml strips the `caml` module-path prefix OCaml's native compiler
// uses, replacing its `__` module separators with `.`.
func ocaml(raw string) (string, bool) {
	body := strings.TrimPrefix(raw, "caml")
	if body == raw || body == "" {
		return "", false
	}
	return strings.ReplaceAll(body, "__", "."), true
}
