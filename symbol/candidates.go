// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package symbol

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/symbol/symsrv"
)

// CandidateConfig configures GenerateCandidates (§4.3.2).
type CandidateConfig struct {
	// PathOverrides maps (debugName, breakpadID) to an exact local
	// path, bypassing every other rule (item 1, "testing hook").
	PathOverrides map[string]string

	// ExtraSymbolDirs are checked for debugName, debugName+".dbg", and
	// the dSYM bundle layout (item 2).
	ExtraSymbolDirs []string

	// DyldSharedCachePaths lists candidate dyld shared cache files to
	// search for a system library (item 3; see moria_mac.rs in
	// SPEC_FULL.md's supplemented-features entry).
	DyldSharedCachePaths []string

	// BreakpadDirs are local directories laid out
	// <dir>/<debug_name>/<breakpad_id>/<name without .pdb>.sym (item 4).
	BreakpadDirs []string

	// NTSymbolPath is the raw _NT_SYMBOL_PATH value (item 5).
	NTSymbolPath string

	// BreakpadServers are remote symbol servers using the same key
	// shape as the NTSymbolPath symbol-server entries, suffixed .sym
	// (item 6).
	BreakpadServers []string

	// DebuginfodServers are queried keyed by CodeID (item 7).
	DebuginfodServers []string
}

// GenerateCandidates produces the ordered candidate list for
// (debugName, id) per §4.3.2. codeID is optional (nil skips the
// debuginfod tier).
func GenerateCandidates(debugName string, id debugid.ID, codeID *debugid.CodeID, cfg CandidateConfig) []FileLocation {
	var out []FileLocation
	breakpadID := id.Breakpad()

	if override, ok := cfg.PathOverrides[debugName+"/"+breakpadID]; ok {
		out = append(out, FileLocation{Kind: FileLocationPath, Path: override})
	}

	for _, dir := range cfg.ExtraSymbolDirs {
		out = append(out,
			FileLocation{Kind: FileLocationPath, Path: joinPath(dir, debugName)},
			FileLocation{Kind: FileLocationPath, Path: joinPath(dir, debugName+".dbg")},
			FileLocation{Kind: FileLocationPath, Path: joinPath(dir, debugName+".dSYM", "Contents", "Resources", "DWARF", debugName)},
		)
	}

	if looksLikeSystemLib(debugName) {
		for _, cache := range cfg.DyldSharedCachePaths {
			out = append(out, FileLocation{Kind: FileLocationInDyldCache, SharedCachePath: cache, DylibPath: debugName})
		}
	}

	strippedName := strings.TrimSuffix(debugName, ".pdb")
	for _, dir := range cfg.BreakpadDirs {
		out = append(out, FileLocation{Kind: FileLocationPath, Path: joinPath(dir, debugName, breakpadID, strippedName+".sym")})
	}

	idHexNoDashes := hex.EncodeToString(idBytesNoAge(id))
	if cfg.NTSymbolPath != "" {
		for _, store := range symsrv.Parse(cfg.NTSymbolPath) {
			key := symsrv.CacheKey(debugName, idHexNoDashes, id.Age(), "")
			if store.CacheDir != "" {
				out = append(out, FileLocation{Kind: FileLocationPath, Path: joinPath(store.CacheDir, key)})
			}
			for _, url := range store.ServerURLs {
				out = append(out, FileLocation{Kind: FileLocationURL, URLBase: url, URLKey: key})
			}
		}
	}

	for _, server := range cfg.BreakpadServers {
		key := symsrv.CacheKey(strippedName, idHexNoDashes, id.Age(), ".sym")
		out = append(out, FileLocation{Kind: FileLocationURL, URLBase: server, URLKey: key})
	}

	if codeID != nil {
		for _, server := range cfg.DebuginfodServers {
			out = append(out, FileLocation{Kind: FileLocationURL, URLBase: server, URLKey: "buildid/" + codeID.String() + "/debuginfo"})
		}
	}

	return out
}

func idBytesNoAge(id debugid.ID) []byte {
	b := id.Bytes()
	return b[:]
}

func looksLikeSystemLib(debugName string) bool {
	return runtime.GOOS == "darwin" && (strings.HasPrefix(debugName, "/System/") || strings.HasPrefix(debugName, "/usr/lib/"))
}

func joinPath(parts ...string) string {
	return strings.Join(parts, "/")
}
