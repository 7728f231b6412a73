// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
)

// MaxDefaultCOFFSymbolsCount is the default cap on the number of COFF
// symbols a single image is allowed to carry before the table is
// treated as corrupt rather than parsed.
const MaxDefaultCOFFSymbolsCount = 0x10000

// MaxCOFFSymStrLength bounds how far a single COFF string table entry
// is read before giving up on finding its NUL terminator.
const MaxCOFFSymStrLength = 0x50

// COFFSymbol represents an entry in the COFF symbol table, which is an
// array of records, each 18 bytes long. Each record is either a standard or
// auxiliary symbol-table record. A standard record defines a symbol or name
// and has the following format.
type COFFSymbol struct {
	Name               [8]byte
	Value              uint32
	SectionNumber      int16
	Type               uint16
	StorageClass       uint8
	NumberOfAuxSymbols uint8
}

// COFF holds properties related to the COFF format.
type COFF struct {
	SymbolTable       []COFFSymbol
	StringTable       []string
	StringTableOffset uint32
	// StringTableM maps symbol offset to symbol name.
	StringTableM map[uint32]string
}

// ParseCOFFSymbolTable parses the COFF symbol table. The symbol table is
// inherited from the traditional COFF format. It is distinct from Microsoft
// Visual C++ debug information. A file can contain both a COFF symbol table
// and Visual C++ debug information, and the two are kept separate.
func (pe *File) ParseCOFFSymbolTable() error {
	pointerToSymbolTable := pe.NtHeader.FileHeader.PointerToSymbolTable
	if pointerToSymbolTable == 0 {
		return errCOFFTableNotPresent
	}

	symCount := pe.NtHeader.FileHeader.NumberOfSymbols
	if symCount == 0 {
		return nil
	}
	if symCount > pe.opts.MaxCOFFSymbolsCount {
		pe.Anomalies = append(pe.Anomalies, "COFF symbols count is absurdly high")
		return errCOFFSymbolsTooHigh
	}

	offset := pointerToSymbolTable
	size := uint32(binary.Size(COFFSymbol{}))
	symbols := make([]COFFSymbol, symCount)

	for i := uint32(0); i < symCount; i++ {
		if err := pe.structUnpack(&symbols[i], offset, size); err != nil {
			return err
		}
		offset += size
	}

	pe.COFF.SymbolTable = symbols
	pe.COFFStringTable()

	pe.HasCOFF = true
	return nil
}

// COFFStringTable retrieves the list of strings in the COFF string table if
// any.
func (pe *File) COFFStringTable() error {
	m := make(map[uint32]string)
	pointerToSymbolTable := pe.NtHeader.FileHeader.PointerToSymbolTable
	if pointerToSymbolTable == 0 {
		return errCOFFTableNotPresent
	}

	symCount := pe.NtHeader.FileHeader.NumberOfSymbols
	if symCount == 0 {
		return nil
	}
	if symCount > pe.opts.MaxCOFFSymbolsCount {
		pe.Anomalies = append(pe.Anomalies, "COFF symbols count is absurdly high")
		return errCOFFSymbolsTooHigh
	}

	// COFF String Table immediately follows the COFF symbol table. The
	// position of this table is found by taking the symbol table address in
	// the COFF header and adding the number of symbols multiplied by the size
	// of a symbol.
	size := uint32(binary.Size(COFFSymbol{}))
	offset := pointerToSymbolTable + (size * symCount)

	// At the beginning of the COFF string table are 4 bytes that contain the
	// total size (in bytes) of the rest of the string table. This size
	// includes the size field itself, so the value here is 4 if no strings
	// are present.
	pe.COFF.StringTableOffset = offset
	strTableSize, err := pe.ReadUint32(offset)
	if err != nil {
		return err
	}
	if strTableSize <= 4 {
		return errNoCOFFStringInTable
	}
	offset += 4

	end := offset + strTableSize - 4
	for offset < end {
		n, str := pe.readASCIIStringAtOffset(offset, MaxCOFFSymStrLength)
		if n == 0 {
			break
		}
		m[offset] = str
		offset += n + 1
		pe.COFF.StringTable = append(pe.COFF.StringTable, str)
	}

	pe.COFF.StringTableM = m
	return nil
}
