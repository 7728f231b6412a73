// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ImageDebugTypeCodeView marks a debug directory entry holding CodeView
// data (the PDB identity), the only debug type this reader consumes.
const ImageDebugTypeCodeView = 2

const (
	// CVSignatureRSDS represents the CodeView signature 'SDSR' (PDB 7.0).
	CVSignatureRSDS = 0x53445352

	// CVSignatureNB10 represents the CodeView signature 'NB10' (PDB 2.0).
	CVSignatureNB10 = 0x3031424e
)

// ImageDebugDirectoryType represents the type of a debug directory.
type ImageDebugDirectoryType uint32

// ImageDebugDirectory represents the IMAGE_DEBUG_DIRECTORY structure.
// This directory indicates what form of debug information is present
// and where it is. This directory consists of an array of debug directory
// entries whose location and size are indicated in the image optional header.
type ImageDebugDirectory struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             ImageDebugDirectoryType
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

// DebugEntry wraps ImageDebugDirectory to include debug directory type.
type DebugEntry struct {
	Struct ImageDebugDirectory
	Info   interface{}
	Type   string
}

// GUID is a 128-bit value consisting of one group of 8 hexadecimal digits,
// followed by three groups of 4 hexadecimal digits each, followed by one
// group of 12 hexadecimal digits.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// CVSignature represents a CodeView signature.
type CVSignature uint32

// CVInfoPDB70 represents the CodeView data block of a PDB 7.0 file.
type CVInfoPDB70 struct {
	CVSignature CVSignature
	Signature   GUID
	Age         uint32
	PDBFileName string
}

// CVHeader represents the CodeView header struct to the PDB 2.0 file.
type CVHeader struct {
	Signature CVSignature
	Offset    uint32
}

// CVInfoPDB20 represents the CodeView data block of a PDB 2.0 file.
type CVInfoPDB20 struct {
	CVHeader    CVHeader
	Signature   uint32
	Age         uint32
	PDBFileName string
}

// parseDebugDirectory walks the debug directory array looking for a
// CodeView entry, and extracts the PDB 7.0 (RSDS) or PDB 2.0 (NB10)
// identity out of it. Other debug types (FPO, POGO, repro hash, ...)
// carry nothing §4.2.4 needs and are skipped.
func (pe *File) parseDebugDirectory(rva, size uint32) error {
	debugEntry := DebugEntry{}
	debugDir := ImageDebugDirectory{}
	errorMsg := fmt.Sprintf("invalid debug information, can't read data at RVA: 0x%x", rva)
	debugDirSize := uint32(binary.Size(debugDir))
	if debugDirSize == 0 {
		return nil
	}
	debugDirsCount := size / debugDirSize

	for i := uint32(0); i < debugDirsCount; i++ {
		offset := pe.GetOffsetFromRva(rva + debugDirSize*i)
		if err := pe.structUnpack(&debugDir, offset, debugDirSize); err != nil {
			return errors.New(errorMsg)
		}

		if debugDir.Type != ImageDebugTypeCodeView {
			continue
		}

		debugSignature, err := pe.ReadUint32(debugDir.PointerToRawData)
		if err != nil {
			continue
		}

		switch debugSignature {
		case CVSignatureRSDS:
			pdb := CVInfoPDB70{CVSignature: CVSignatureRSDS}

			offset := debugDir.PointerToRawData + 4
			guidSize := uint32(binary.Size(pdb.Signature))
			if err := pe.structUnpack(&pdb.Signature, offset, guidSize); err != nil {
				continue
			}

			offset += guidSize
			if pdb.Age, err = pe.ReadUint32(offset); err != nil {
				continue
			}
			offset += 4

			pdbFilenameSize := debugDir.SizeOfData - 24 - 1
			if pdbFilenameSize > 0 {
				pdbFilename := make([]byte, pdbFilenameSize)
				if err := pe.structUnpack(&pdbFilename, offset, pdbFilenameSize); err != nil {
					continue
				}
				pdb.PDBFileName = cString(pdbFilename)
			}

			debugEntry.Info = pdb
			debugEntry.Type = "CodeView"

		case CVSignatureNB10:
			cvHeader := CVHeader{}
			offset := debugDir.PointerToRawData
			if err := pe.structUnpack(&cvHeader, offset, uint32(binary.Size(cvHeader))); err != nil {
				continue
			}

			pdb := CVInfoPDB20{CVHeader: cvHeader}
			if pdb.Signature, err = pe.ReadUint32(offset + 8); err != nil {
				continue
			}
			if pdb.Age, err = pe.ReadUint32(offset + 12); err != nil {
				continue
			}
			offset += 16

			pdbFilenameSize := debugDir.SizeOfData - 16 - 1
			if pdbFilenameSize > 0 {
				pdbFilename := make([]byte, pdbFilenameSize)
				if err := pe.structUnpack(&pdbFilename, offset, pdbFilenameSize); err != nil {
					continue
				}
				pdb.PDBFileName = cString(pdbFilename)
			}

			debugEntry.Info = pdb
			debugEntry.Type = "CodeView"
		}

		debugEntry.Struct = debugDir
		pe.Debugs = append(pe.Debugs, debugEntry)
	}

	pe.HasDebug = true
	return nil
}
