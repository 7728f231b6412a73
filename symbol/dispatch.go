// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package symbol

import (
	"bytes"
	"fmt"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/symbol/format/breakpad"
	"github.com/tracewell/profcore/symbol/format/elf"
	"github.com/tracewell/profcore/symbol/format/jitdump"
	"github.com/tracewell/profcore/symbol/format/macho"
	pepkg "github.com/tracewell/profcore/symbol/format/pe"
	"github.com/tracewell/profcore/symbol/pathmapper"
)

// Format is the sniffed container type of a candidate file (§4.2.1
// item 1).
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatMachO
	FormatMachOFat
	FormatPE
	FormatPDB
	FormatBreakpad
	FormatJitdump
)

// SniffFormat inspects the first bytes of data to identify its
// container format (§4.2.1 item 1).
func SniffFormat(data []byte) Format {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x7F, 'E', 'L', 'F'}):
		return FormatELF
	case len(data) >= 4 && (beU32(data) == 0xFEEDFACF || beU32(data) == 0xFEEDFACE):
		return FormatMachO
	case len(data) >= 4 && (beU32(data) == 0xCAFEBABE || beU32(data) == 0xBEBAFECA):
		return FormatMachOFat
	case len(data) >= 2 && data[0] == 'M' && data[1] == 'Z':
		return FormatPE
	case len(data) >= 30 && bytes.HasPrefix(data, []byte("Microsoft C/C++ MSF 7.00\r\n\x1ADS\x00\x00\x00")):
		return FormatPDB
	case bytes.HasPrefix(data, []byte("MODULE ")):
		return FormatBreakpad
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("JiTD")):
		return FormatJitdump
	default:
		return FormatUnknown
	}
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// NewSymbolMapFromBytes dispatches on data's sniffed format, parses it,
// and verifies its derived DebugID against want, per §4.2.1. A nil
// want skips the identity check, except for a fat Mach-O archive, where
// it yields a NoDisambiguatorError listing each member's DebugID.
func NewSymbolMapFromBytes(data []byte, want *debugid.ID, mapper *pathmapper.Mapper) (SymbolMap, error) {
	switch SniffFormat(data) {
	case FormatELF:
		sm, err := elf.Parse(data, mapper)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObjectParse, err)
		}
		return checkIdentity(sm, want)
	case FormatMachO:
		sm, err := macho.Parse(data, mapper)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObjectParse, err)
		}
		return checkIdentity(sm, want)
	case FormatMachOFat:
		members, err := macho.ParseFat(data, mapper)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObjectParse, err)
		}
		if want == nil {
			ids := make([]debugid.ID, 0, len(members))
			for _, m := range members {
				ids = append(ids, m.DebugID())
			}
			return nil, &NoDisambiguatorError{Members: ids}
		}
		for _, m := range members {
			if m.DebugID() == *want {
				return m, nil
			}
		}
		return nil, &UnmatchedDebugIDError{Expected: *want}
	case FormatPE:
		sm, err := pepkg.ParseSymbolMap(data, mapper)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObjectParse, err)
		}
		return checkIdentity(sm, want)
	case FormatBreakpad:
		sm, err := breakpad.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObjectParse, err)
		}
		return checkIdentity(sm, want)
	case FormatJitdump:
		sm, err := jitdump.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObjectParse, err)
		}
		return checkIdentity(sm, want)
	case FormatPDB:
		return nil, fmt.Errorf("%w: standalone PDB parsing requires the owning PE's CodeView entry", ErrPdbError)
	default:
		return nil, ErrUnknownFormat
	}
}

func checkIdentity(sm SymbolMap, want *debugid.ID) (SymbolMap, error) {
	if want == nil {
		return sm, nil
	}
	if sm.DebugID() != *want {
		defer sm.Close()
		return nil, &UnmatchedDebugIDError{Expected: *want, Actual: sm.DebugID()}
	}
	return sm, nil
}
