// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package pathmapper canonicalizes debug-info file paths into
// portable, source-independent keys (§4.2.5): rustc's standard-library
// paths map to a pinned git revision, and Cargo registry source paths
// map to a crate+version key. Mapping is a pure function, cached per
// Mapper instance.
package pathmapper

import (
	"regexp"
	"strings"
	"sync"
)

// ExtraMapper is a caller-supplied mapping rule tried before the
// built-in rustc/cargo rules (§4.2.5 "External mappers may run before
// the built-in rules").
type ExtraMapper func(path string) (string, bool)

var rustcRe = regexp.MustCompile(`^/rustc/([0-9a-fA-F]{40})[/\\](.+)$`)
var cargoRe = regexp.MustCompile(`[/\\]\.cargo[/\\]registry[/\\]src[/\\]([^/\\]+)[/\\]([^/\\]+)-([0-9][^/\\]*)[/\\](.+)$`)

// Mapper applies the built-in rules plus any configured extra mappers,
// memoizing results per input path.
type Mapper struct {
	extra []ExtraMapper

	mu    sync.Mutex
	cache map[string]string
}

// New returns a Mapper with extras tried, in order, before the
// built-in rustc/cargo rules.
func New(extra ...ExtraMapper) *Mapper {
	return &Mapper{extra: extra, cache: make(map[string]string)}
}

// Map canonicalizes path, returning (mapped, true) on a match or
// ("", false) if no rule applies (the original path is used as-is by
// the caller in that case).
func (m *Mapper) Map(path string) (string, bool) {
	m.mu.Lock()
	if v, ok := m.cache[path]; ok {
		m.mu.Unlock()
		return v, v != ""
	}
	m.mu.Unlock()

	mapped, ok := m.compute(path)
	m.mu.Lock()
	if ok {
		m.cache[path] = mapped
	} else {
		m.cache[path] = ""
	}
	m.mu.Unlock()
	return mapped, ok
}

func (m *Mapper) compute(path string) (string, bool) {
	for _, fn := range m.extra {
		if mapped, ok := fn(path); ok {
			return mapped, true
		}
	}
	if g := rustcRe.FindStringSubmatch(path); g != nil {
		rev, rest := g[1], normalizeSlashes(g[2])
		return "git:github.com/rust-lang/rust:" + rest + ":" + rev, true
	}
	if g := cargoRe.FindStringSubmatch(path); g != nil {
		registry, crate, version, rest := g[1], g[2], g[3], normalizeSlashes(g[4])
		return "cargo:" + registry + ":" + crate + "-" + version + ":" + rest, true
	}
	return "", false
}

func normalizeSlashes(s string) string {
	return strings.ReplaceAll(s, "\\", "/")
}
