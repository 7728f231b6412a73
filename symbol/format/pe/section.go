// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
	"strings"
)

// ImageSectionHeader is IMAGE_SECTION_HEADER: one row of the section
// table that immediately follows the optional header.
type ImageSectionHeader struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

// Section pairs a section header with its zero-based table position,
// needed to resolve "the next section's start" when bounding an RVA.
type Section struct {
	Header ImageSectionHeader
	index  int
}

// ParseSectionHeader parses the section table, which begins directly
// after the optional header and has NumberOfSections entries.
func (pe *File) ParseSectionHeader() error {
	optionalHeaderOffset := pe.DOSHeader.AddressOfNewEXEHeader + 4 + uint32(binary.Size(pe.NtHeader.FileHeader))
	offset := optionalHeaderOffset + uint32(pe.NtHeader.FileHeader.SizeOfOptionalHeader)

	secHeader := ImageSectionHeader{}
	numberOfSections := pe.NtHeader.FileHeader.NumberOfSections
	secHeaderSize := uint32(binary.Size(secHeader))

	for i := uint16(0); i < numberOfSections; i++ {
		if err := pe.structUnpack(&secHeader, offset, secHeaderSize); err != nil {
			return err
		}

		sec := Section{Header: secHeader, index: int(i)}
		if secHeader.SizeOfRawData+secHeader.PointerToRawData > pe.size {
			pe.Anomalies = append(pe.Anomalies, "section `"+sec.String()+"` SizeOfRawData is larger than file")
		}

		pe.Sections = append(pe.Sections, sec)
		offset += secHeaderSize
	}

	pe.HasSections = true
	return nil
}

// String renders the raw, NUL-padded section name.
func (section *Section) String() string {
	return strings.Replace(string(section.Header.Name[:]), "\x00", "", -1)
}

// nextHeaderVA returns the VirtualAddress of the section immediately
// following this one in table order, or 0 if this is the last one.
func (section *Section) nextHeaderVA(pe *File) uint32 {
	if section.index+1 >= len(pe.Sections) {
		return 0
	}
	return pe.Sections[section.index+1].Header.VirtualAddress
}

// Contains reports whether rva falls within this section's mapped
// range, adjusted for file/section alignment the way the loader would
// compute it.
func (section *Section) Contains(rva uint32, pe *File) bool {
	var size uint32
	adjustedPointer := pe.adjustFileAlignment(section.Header.PointerToRawData)
	if uint32(len(pe.data))-adjustedPointer < section.Header.SizeOfRawData {
		size = section.Header.VirtualSize
	} else {
		size = max32(section.Header.SizeOfRawData, section.Header.VirtualSize)
	}
	vaAdj := pe.adjustSectionAlignment(section.Header.VirtualAddress)

	if next := section.nextHeaderVA(pe); next != 0 && next > section.Header.VirtualAddress && vaAdj+size > next {
		size = next - vaAdj
	}

	return vaAdj <= rva && rva < vaAdj+size
}

func max32(x, y uint32) uint32 {
	if x < y {
		return y
	}
	return x
}
