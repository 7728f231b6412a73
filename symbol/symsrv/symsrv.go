// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package symsrv parses the Windows _NT_SYMBOL_PATH grammar (§6):
// semicolon-separated entries of the form `srv*localcache*server`,
// `cache*dir`, or `symsrv*symsrv.dll*cache*url`. No pack library
// covers this bespoke, Windows-specific grammar, so it is a small
// hand-rolled parser (see DESIGN.md).
package symsrv

import "strings"

// StoreKind discriminates one _NT_SYMBOL_PATH entry.
type StoreKind int

const (
	// StoreCache is a local cache directory with no associated server
	// (`cache*dir`).
	StoreCache StoreKind = iota
	// StoreServer is a downstream symbol server with a local cache
	// (`srv*localcache*server`).
	StoreServer
	// StoreSymsrv is the `symsrv*symsrv.dll*cache*url` spelling, treated
	// identically to StoreServer once parsed.
	StoreSymsrv
)

// Store is one parsed _NT_SYMBOL_PATH entry.
type Store struct {
	Kind       StoreKind
	CacheDir   string
	ServerURLs []string
}

// Parse splits path (the raw environment variable value) into Stores,
// in the order they appear (earlier entries are higher priority per
// §4.3.2 item 5).
func Parse(path string) []Store {
	var stores []Store
	for _, entry := range strings.Split(path, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if s, ok := parseEntry(entry); ok {
			stores = append(stores, s)
		}
	}
	return stores
}

func parseEntry(entry string) (Store, bool) {
	parts := strings.Split(entry, "*")
	if len(parts) == 0 {
		return Store{}, false
	}
	switch strings.ToLower(parts[0]) {
	case "cache":
		if len(parts) < 2 {
			return Store{}, false
		}
		return Store{Kind: StoreCache, CacheDir: parts[1]}, true
	case "srv":
		switch len(parts) {
		case 2:
			return Store{Kind: StoreServer, ServerURLs: parts[1:]}, true
		case 3:
			return Store{Kind: StoreServer, CacheDir: parts[1], ServerURLs: parts[2:]}, true
		}
		return Store{}, false
	case "symsrv":
		// symsrv*symsrv.dll*cache*url: parts[1] is the DLL name, ignored.
		if len(parts) < 4 {
			return Store{}, false
		}
		return Store{Kind: StoreSymsrv, CacheDir: parts[2], ServerURLs: parts[3:]}, true
	default:
		// A bare path with no verb is itself a cache directory.
		return Store{Kind: StoreCache, CacheDir: entry}, true
	}
}

// CacheKey builds the `<debug_name>/<hex_debugid_without_dashes +
// age>/<debug_name>` file key used by both symbol-server cache paths
// and Breakpad symbol servers (§4.3.2 items 5-6).
func CacheKey(debugName, idHexNoDashes string, age uint32, suffix string) string {
	ageHex := ""
	if age != 0 {
		ageHex = hexUint(age)
	}
	name := debugName
	if suffix != "" {
		name = strings.TrimSuffix(debugName, ".pdb") + suffix
	}
	return debugName + "/" + idHexNoDashes + ageHex + "/" + name
}

func hexUint(v uint32) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%16]
		v /= 16
	}
	return string(buf[i:])
}
