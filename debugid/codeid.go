// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package debugid

import "fmt"

// CodeIDKind discriminates the CodeId variant (§3.2).
type CodeIDKind int

const (
	CodeIDUnknown CodeIDKind = iota
	CodeIDElfBuildID
	CodeIDPeCodeID
	CodeIDMachoUUID
)

// CodeID is the tagged union `{ElfBuildId(bytes) | PeCodeId{timestamp,
// image_size} | MachoUuid(16B)}` from §3.2. It identifies the code
// artifact itself, as opposed to ID which identifies its debug
// companion.
type CodeID struct {
	Kind CodeIDKind

	// ElfBuildID holds the raw build-id bytes when Kind ==
	// CodeIDElfBuildID.
	ElfBuildID []byte

	// PE fields, valid when Kind == CodeIDPeCodeID.
	PETimestamp uint32
	PEImageSize uint32

	// MachoUUID holds the raw 16 bytes when Kind == CodeIDMachoUUID.
	MachoUUID [16]byte
}

// NewElfBuildID builds a CodeID from raw ELF build-id bytes.
func NewElfBuildID(b []byte) CodeID {
	cp := make([]byte, len(b))
	copy(cp, b)
	return CodeID{Kind: CodeIDElfBuildID, ElfBuildID: cp}
}

// NewPeCodeID builds a CodeID from a PE COFF header timestamp and the
// optional header's SizeOfImage.
func NewPeCodeID(timestamp, imageSize uint32) CodeID {
	return CodeID{Kind: CodeIDPeCodeID, PETimestamp: timestamp, PEImageSize: imageSize}
}

// NewMachoUUID builds a CodeID from a Mach-O LC_UUID payload.
func NewMachoUUID(b [16]byte) CodeID {
	return CodeID{Kind: CodeIDMachoUUID, MachoUUID: b}
}

// String renders a stable textual form suitable for use as a
// debuginfod lookup key or a cache-path component.
func (c CodeID) String() string {
	switch c.Kind {
	case CodeIDElfBuildID:
		return fmt.Sprintf("%x", c.ElfBuildID)
	case CodeIDPeCodeID:
		return fmt.Sprintf("%08X%x", c.PETimestamp, c.PEImageSize)
	case CodeIDMachoUUID:
		return fmt.Sprintf("%x", c.MachoUUID)
	default:
		return ""
	}
}
