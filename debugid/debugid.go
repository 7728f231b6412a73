// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package debugid implements the 16-byte debug identifier shared by
// the profile model's LibraryInfo and the symbolication engine (§3.2,
// §4.2.4). It is backed by github.com/google/uuid the way
// brancz-otel-profiling-agent/go.mod already depends on that module,
// rather than hand-rolling UUID byte math.
package debugid

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ID is a 16-byte debug identifier. Its origin (PDB GUID+age, ELF
// build-ID, Mach-O UUID, or a content hash) does not survive in the
// type; only the priority order at construction time (§3.2) decides
// which bytes end up here.
type ID struct {
	uuid uuid.UUID
	// age is only meaningful for PDB-derived ids; zero otherwise.
	age uint32
}

// ErrInvalidBreakpadID is returned when a breakpad-id string is
// malformed.
var ErrInvalidBreakpadID = errors.New("debugid: malformed breakpad id")

// FromBytes builds an ID from exactly 16 raw bytes, interpreted
// big-endian the way uuid.UUID stores its wire form. age is carried
// alongside for PDB identifiers (0 for everything else).
func FromBytes(b [16]byte, age uint32) ID {
	return ID{uuid: uuid.UUID(b), age: age}
}

// FromPDB builds an ID from a PDB GUID (already in the PDB's internal
// mixed-endian layout, first 4 bytes little-endian u32, next two
// fields little-endian u16, remainder as-is) plus its age. guid must
// be 16 bytes.
func FromPDB(guid [16]byte, age uint32) ID {
	return ID{uuid: uuid.UUID(guid), age: age}
}

// FromELFBuildID derives an ID from the first bytes of an ELF
// NT_GNU_BUILD_ID note, per §4.2.4: the first 16 bytes (zero-padded if
// fewer) are read as u32,u16,u16 in the file's endianness followed by
// 8 raw bytes, then assembled as a UUID.
func FromELFBuildID(buildID []byte, bigEndian bool) ID {
	var b [16]byte
	copy(b[:], buildID)

	bo := byteOrderFor(bigEndian)
	u32 := bo.Uint32(b[0:4])
	u16a := bo.Uint16(b[4:6])
	u16b := bo.Uint16(b[6:8])

	var out [16]byte
	// Reassemble as a canonical (big-endian-on-the-wire) UUID
	// regardless of source endianness, matching debugid round-trip
	// expectations (from_bytes(to_bytes(d)) == d, §8).
	putUint32BE(out[0:4], u32)
	putUint16BE(out[4:6], u16a)
	putUint16BE(out[6:8], u16b)
	copy(out[8:16], b[8:16])
	return ID{uuid: uuid.UUID(out)}
}

// FromTextHash derives an ID by XORing 16-byte chunks of data (the
// first 4096 bytes of .text, by convention) into a 16-byte
// accumulator, then treating the result the same way as an ELF
// build-ID (§4.2.4).
func FromTextHash(data []byte, bigEndian bool) ID {
	if len(data) > 4096 {
		data = data[:4096]
	}
	var acc [16]byte
	for len(data) > 0 {
		n := 16
		if len(data) < n {
			n = len(data)
		}
		for i := 0; i < n; i++ {
			acc[i] ^= data[i]
		}
		data = data[n:]
	}
	return FromELFBuildID(acc[:], bigEndian)
}

// FromMachoUUID builds an ID from a Mach-O LC_UUID load command's 16
// raw bytes.
func FromMachoUUID(b [16]byte) ID {
	return ID{uuid: uuid.UUID(b)}
}

// Age returns the PDB age component (0 if this id did not originate
// from a PDB GUID).
func (id ID) Age() uint32 { return id.age }

// Bytes returns the raw 16 bytes.
func (id ID) Bytes() [16]byte { return [16]byte(id.uuid) }

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id.uuid == uuid.Nil && id.age == 0 }

// String renders the canonical UUID text form (age is not included;
// use Breakpad for the breakpad-id text form).
func (id ID) String() string { return id.uuid.String() }

// Breakpad renders the id the way breakpad/Tecken clients expect:
// 32 uppercase hex digits with no separators, followed by the age in
// lowercase hex with no leading zeros (0 renders as "0").
func (id ID) Breakpad() string {
	raw := id.uuid[:]
	hexStr := hex.EncodeToString(raw)
	return fmt.Sprintf("%s%x", upper(hexStr), id.age)
}

// ParseBreakpad parses the textual form produced by Breakpad, i.e.
// <32 hex uppercase><age hex>.
func ParseBreakpad(s string) (ID, error) {
	if len(s) < 33 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidBreakpadID, s)
	}
	rawHex := s[:32]
	ageHex := s[32:]
	raw, err := hex.DecodeString(rawHex)
	if err != nil || len(raw) != 16 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidBreakpadID, s)
	}
	var age uint64
	if ageHex != "" {
		age, err = parseHexUint(ageHex)
		if err != nil {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidBreakpadID, s)
		}
	}
	var b [16]byte
	copy(b[:], raw)
	return ID{uuid: uuid.UUID(b), age: uint32(age)}, nil
}

func parseHexUint(s string) (uint64, error) {
	var v uint64
	for _, c := range s {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return 0, ErrInvalidBreakpadID
		}
		v = v*16 + d
	}
	return v, nil
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
