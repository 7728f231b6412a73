// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package symbol implements the symbolication engine (component S):
// format dispatch over ELF/Mach-O/PE+PDB/Breakpad/jitdump symbol
// files, address lookup, a candidate-path symbol manager with an
// async download pipeline, and a quota-managed on-disk cache.
package symbol

import (
	"errors"
	"fmt"

	"github.com/tracewell/profcore/debugid"
)

// Sentinel errors, following the teacher's helper.go convention of a
// flat block of errors.New values wrapped with %w at call sites.
var (
	ErrUnmatchedDebugID            = errors.New("symbol: file debug id does not match requested id")
	ErrNoDisambiguatorForFatArchive = errors.New("symbol: fat archive requires a debug id to select a member")
	ErrObjectParse                  = errors.New("symbol: failed to parse object file")
	ErrPdbError                     = errors.New("symbol: failed to parse pdb")
	ErrInvalidInput                 = errors.New("symbol: invalid or truncated input")
	ErrNoDebugInfo                  = errors.New("symbol: no debug info available for this address")
	ErrInvalidPath                  = errors.New("symbol: requested path was not produced by symbolication of this address")
	ErrNonLocalSymbols               = errors.New("symbol: resolved path has no local on-disk form")
	ErrUnknownFormat                = errors.New("symbol: unrecognized file format")
)

// UnmatchedDebugIDError carries the expected/actual ids for
// ErrUnmatchedDebugID (§4.2.1 item 4).
type UnmatchedDebugIDError struct {
	Expected debugid.ID
	Actual   debugid.ID
}

func (e *UnmatchedDebugIDError) Error() string {
	return fmt.Sprintf("symbol: expected debug id %s, file has %s", e.Expected, e.Actual)
}

func (e *UnmatchedDebugIDError) Unwrap() error { return ErrUnmatchedDebugID }

// NoDisambiguatorError carries the candidate UUIDs for
// ErrNoDisambiguatorForFatArchive (§8 scenario 2).
type NoDisambiguatorError struct {
	Members []debugid.ID
}

func (e *NoDisambiguatorError) Error() string {
	return fmt.Sprintf("symbol: fat archive has %d members, no debug id given to disambiguate", len(e.Members))
}

func (e *NoDisambiguatorError) Unwrap() error { return ErrNoDisambiguatorForFatArchive }

// Symbol is one entry of a SymbolMap's address-ordered table.
type Symbol struct {
	Address uint32
	Size    *uint32
	Name    string
}

// Frame is one logical stack frame produced by inline expansion,
// deepest-first (§4.2.3 item 3, §8 scenario 3).
type Frame struct {
	Function *string
	FilePath  *string // already passed through the path mapper
	Line      *uint32
}

// ExternalFileAddressRef points at a companion file (a Mach-O debug
// map .o file, or a DWARF supplementary file) that must be opened
// separately to resolve line info (§4.2.2 Mach-O, §7).
type ExternalFileAddressRef struct {
	ObjectFilePath string
	Offset         uint64
}

// FramesLookupResultKind discriminates FramesLookupResult (§3.2).
type FramesLookupResultKind int

const (
	FramesUnavailable FramesLookupResultKind = iota
	FramesAvailable
	FramesExternal
)

// FramesLookupResult is the tagged union `{Available(Vec<Frame>) |
// External(ExternalFileAddressRef) | Unavailable}`.
type FramesLookupResult struct {
	Kind     FramesLookupResultKind
	Frames   []Frame                // valid when Kind == FramesAvailable
	External ExternalFileAddressRef // valid when Kind == FramesExternal
}

// AddressInfo is the result of a successful SymbolMap.Lookup (§3.2).
type AddressInfo struct {
	Symbol Symbol
	Frames FramesLookupResult
}

// SymbolMap is a per-library lookup structure (§3.2). Implementations
// own whatever backing bytes (mmap'd file, in-memory buffer) their
// parsed data borrows from, per §9 "owning container" guidance.
type SymbolMap interface {
	// SymbolCount returns the number of entries in the address table.
	SymbolCount() int
	// IterSymbols yields (rva, name) pairs in address order.
	IterSymbols(yield func(rva uint32, name string) bool)
	// Lookup resolves rva to the covering symbol and any inline
	// frames, per §4.2.3. ok is false if no symbol covers rva.
	Lookup(rva uint32) (AddressInfo, bool)
	// DebugID is the identity this map was parsed and verified against.
	DebugID() debugid.ID
	// Close releases backing resources (e.g. an mmap).
	Close() error
}
