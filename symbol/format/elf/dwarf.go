// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package elf

import (
	"debug/dwarf"
	"sort"

	"github.com/tracewell/profcore/symbol"
	"github.com/tracewell/profcore/symbol/pathmapper"
)

// lineRow is one (address, file, line) entry flattened from every
// compilation unit's line-number program.
type lineRow struct {
	addr uint64
	file string
	line uint32
}

// dwarfLines is a minimal line-table index letting Lookup attach a
// file:line to a symbol's resolved address (§4.2.3 "line info").
// Inline subroutine expansion is intentionally not attempted here: the
// DWARF abstract-origin walk needed for that is a larger undertaking
// than this cut covers, so a single frame is returned per address.
type dwarfLines struct {
	rows   []lineRow // sorted by addr
	mapper *pathmapper.Mapper
}

func buildLineTable(dw *dwarf.Data, mapper *pathmapper.Mapper) *dwarfLines {
	dl := &dwarfLines{mapper: mapper}
	r := dw.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := dw.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				break
			}
			if le.File == nil {
				continue
			}
			dl.rows = append(dl.rows, lineRow{addr: le.Address, file: le.File.Name, line: uint32(le.Line)})
		}
	}
	sort.Slice(dl.rows, func(i, j int) bool { return dl.rows[i].addr < dl.rows[j].addr })
	return dl
}

func (dl *dwarfLines) lookup(rva uint32, funcName string) ([]symbol.Frame, bool) {
	addr := uint64(rva)
	i := sort.Search(len(dl.rows), func(i int) bool { return dl.rows[i].addr > addr })
	if i == 0 {
		return nil, false
	}
	row := dl.rows[i-1]
	file := row.file
	if dl.mapper != nil {
		if mapped, ok := dl.mapper.Map(file); ok {
			file = mapped
		}
	}
	name := funcName
	line := row.line
	return []symbol.Frame{{Function: &name, FilePath: &file, Line: &line}}, true
}
