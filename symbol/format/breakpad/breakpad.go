// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package breakpad parses Breakpad text ".sym" symbol files (§4.2.2,
// §6) and their binary ".symindex" sidecar (a FUNC-line byte-offset
// index enabling O(log n) reopen).
package breakpad

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/symbol"
)

// ErrMalformedLine is returned for a line that doesn't match any
// recognized record grammar (§6).
var ErrMalformedLine = errors.New("breakpad: malformed line")

// Func is one FUNC record plus its address lines and INLINE children.
type Func struct {
	Address   uint32
	Size      uint32
	ParamSize uint32
	Name      string
	Multiple  bool
	Lines     []AddrLine
	Inlines   []Inline
}

// AddrLine is one address-line record nested under a FUNC (§6).
type AddrLine struct {
	Address uint32
	Size    uint32
	Line    uint32
	FileID  int
}

// Inline is one INLINE record (§4.2.2).
type Inline struct {
	Depth           int
	CallsiteLine    uint32
	CallsiteFileID  int
	CalleeFileID    int
	CalleeLine      uint32
	CalleeOriginID  int
}

// Public is one PUBLIC record.
type Public struct {
	Address   uint32
	ParamSize uint32
	Name      string
	Multiple  bool
}

// Map is the parsed contents of one Breakpad .sym file, implementing
// symbol.SymbolMap.
type Map struct {
	debugID debugid.ID
	os      string
	arch    string
	moduleID string

	files          map[int]string
	inlineOrigins  map[int]string
	funcs          []Func // sorted by Address
	publics        []Public // sorted by Address
}

var _ symbol.SymbolMap = (*Map)(nil)

// Parse reads a full Breakpad .sym document into a Map (§4.2.2, §6).
func Parse(data []byte) (*Map, error) {
	m := &Map{files: make(map[int]string), inlineOrigins: make(map[int]string)}
	var cur *Func

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "MODULE":
			if len(fields) < 5 {
				return nil, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
			}
			m.os, m.arch, m.moduleID = fields[1], fields[2], fields[3]
			id, err := debugid.ParseBreakpad(fields[3])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			m.debugID = id
		case "FILE":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
			}
			m.files[id] = strings.Join(fields[2:], " ")
		case "INLINE_ORIGIN":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
			}
			m.inlineOrigins[id] = strings.Join(fields[2:], " ")
		case "FUNC":
			f, err := parseFunc(fields, lineNo)
			if err != nil {
				return nil, err
			}
			m.funcs = append(m.funcs, f)
			cur = &m.funcs[len(m.funcs)-1]
		case "PUBLIC":
			p, err := parsePublic(fields, lineNo)
			if err != nil {
				return nil, err
			}
			m.publics = append(m.publics, p)
		case "INLINE":
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: INLINE outside FUNC", ErrMalformedLine, lineNo)
			}
			in, err := parseInline(fields, lineNo)
			if err != nil {
				return nil, err
			}
			cur.Inlines = append(cur.Inlines, in)
		case "STACK":
			// CFI/WIN stack-unwind records: out of scope (§1 "stack
			// unwinding itself... out of scope").
		default:
			if cur != nil && isHex(fields[0]) {
				al, err := parseAddrLine(fields, lineNo)
				if err != nil {
					return nil, err
				}
				cur.Lines = append(cur.Lines, al)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.Slice(m.funcs, func(i, j int) bool { return m.funcs[i].Address < m.funcs[j].Address })
	sort.Slice(m.publics, func(i, j int) bool { return m.publics[i].Address < m.publics[j].Address })
	return m, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func hex32(s string, lineNo int) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %v", ErrMalformedLine, lineNo, err)
	}
	return uint32(v), nil
}

func parseFunc(fields []string, lineNo int) (Func, error) {
	i := 1
	multiple := false
	if i < len(fields) && fields[i] == "m" {
		multiple = true
		i++
	}
	if len(fields) < i+4 {
		return Func{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
	}
	addr, err := hex32(fields[i], lineNo)
	if err != nil {
		return Func{}, err
	}
	size, err := hex32(fields[i+1], lineNo)
	if err != nil {
		return Func{}, err
	}
	paramSize, err := hex32(fields[i+2], lineNo)
	if err != nil {
		return Func{}, err
	}
	name := strings.Join(fields[i+3:], " ")
	return Func{Address: addr, Size: size, ParamSize: paramSize, Name: name, Multiple: multiple}, nil
}

func parsePublic(fields []string, lineNo int) (Public, error) {
	i := 1
	multiple := false
	if i < len(fields) && fields[i] == "m" {
		multiple = true
		i++
	}
	if len(fields) < i+3 {
		return Public{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
	}
	addr, err := hex32(fields[i], lineNo)
	if err != nil {
		return Public{}, err
	}
	paramSize, err := hex32(fields[i+1], lineNo)
	if err != nil {
		return Public{}, err
	}
	name := strings.Join(fields[i+2:], " ")
	return Public{Address: addr, ParamSize: paramSize, Name: name, Multiple: multiple}, nil
}

func parseAddrLine(fields []string, lineNo int) (AddrLine, error) {
	if len(fields) < 4 {
		return AddrLine{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
	}
	addr, err := hex32(fields[0], lineNo)
	if err != nil {
		return AddrLine{}, err
	}
	size, err := hex32(fields[1], lineNo)
	if err != nil {
		return AddrLine{}, err
	}
	line, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return AddrLine{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
	}
	fileID, err := strconv.Atoi(fields[3])
	if err != nil {
		return AddrLine{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
	}
	return AddrLine{Address: addr, Size: size, Line: uint32(line), FileID: fileID}, nil
}

func parseInline(fields []string, lineNo int) (Inline, error) {
	if len(fields) < 7 {
		return Inline{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
	}
	nums := make([]int, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return Inline{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
		}
		nums[i] = v
	}
	return Inline{
		Depth: nums[0], CallsiteLine: uint32(nums[1]), CallsiteFileID: nums[2],
		CalleeFileID: nums[3], CalleeLine: uint32(nums[4]), CalleeOriginID: nums[5],
	}, nil
}

// SymbolCount implements symbol.SymbolMap.
func (m *Map) SymbolCount() int { return len(m.funcs) + len(m.publics) }

// DebugID implements symbol.SymbolMap.
func (m *Map) DebugID() debugid.ID { return m.debugID }

// Close implements symbol.SymbolMap; Map holds no external resources.
func (m *Map) Close() error { return nil }

// IterSymbols implements symbol.SymbolMap, yielding FUNC entries
// before PUBLIC entries not already covered by a FUNC.
func (m *Map) IterSymbols(yield func(rva uint32, name string) bool) {
	for _, f := range m.funcs {
		if !yield(f.Address, f.Name) {
			return
		}
	}
	for _, p := range m.publics {
		if m.funcAt(p.Address) != nil {
			continue
		}
		if !yield(p.Address, p.Name) {
			return
		}
	}
}

func (m *Map) funcAt(addr uint32) *Func {
	i := sort.Search(len(m.funcs), func(i int) bool { return m.funcs[i].Address > addr })
	if i == 0 {
		return nil
	}
	f := &m.funcs[i-1]
	if addr < f.Address || (f.Size != 0 && addr >= f.Address+f.Size) {
		return nil
	}
	return f
}

func (m *Map) publicAt(addr uint32) *Public {
	i := sort.Search(len(m.publics), func(i int) bool { return m.publics[i].Address > addr })
	if i == 0 {
		return nil
	}
	p := &m.publics[i-1]
	return p
}

// Lookup implements symbol.SymbolMap per §4.2.3 and §8 scenario 5.
func (m *Map) Lookup(rva uint32) (symbol.AddressInfo, bool) {
	if f := m.funcAt(rva); f != nil {
		size := f.Size
		info := symbol.AddressInfo{
			Symbol: symbol.Symbol{Address: f.Address, Size: &size, Name: f.Name},
			Frames: symbol.FramesLookupResult{Kind: symbol.FramesUnavailable},
		}
		if len(f.Lines) > 0 {
			info.Frames = symbol.FramesLookupResult{Kind: symbol.FramesAvailable, Frames: m.frameChain(f, rva)}
		}
		return info, true
	}
	if p := m.publicAt(rva); p != nil {
		return symbol.AddressInfo{
			Symbol: symbol.Symbol{Address: p.Address, Name: p.Name},
			Frames: symbol.FramesLookupResult{Kind: symbol.FramesUnavailable},
		}, true
	}
	return symbol.AddressInfo{}, false
}

// frameChain builds the deepest-first inline-expanded frame list for
// rva within f, using f.Inlines (§8 scenario 3).
func (m *Map) frameChain(f *Func, rva uint32) []symbol.Frame {
	var line *AddrLine
	for i := range f.Lines {
		l := &f.Lines[i]
		if rva >= l.Address && (l.Size == 0 || rva < l.Address+l.Size) {
			line = l
			break
		}
	}
	leafLine := uint32(0)
	leafFile := ""
	if line != nil {
		leafLine = line.Line
		leafFile = m.files[line.FileID]
	}

	var chain []symbol.Frame
	name := f.Name
	fileCopy := leafFile
	lineCopy := leafLine
	chain = append(chain, symbol.Frame{Function: &name, FilePath: strPtrOrNil(fileCopy), Line: u32PtrOrNil(lineCopy)})

	// Deepest-first: INLINE records at increasing depth describe
	// callers of the previous entry. The INLINE grammar carries no
	// address range, so a record applies to rva only when its
	// callee_line equals the line of the address record covering rva.
	sort.SliceStable(f.Inlines, func(i, j int) bool { return f.Inlines[i].Depth < f.Inlines[j].Depth })
	for _, in := range f.Inlines {
		if line == nil || in.CalleeLine != line.Line {
			continue
		}
		origin := m.inlineOrigins[in.CalleeOriginID]
		file := m.files[in.CallsiteFileID]
		chain = append([]symbol.Frame{{Function: &origin, FilePath: strPtrOrNil(file), Line: u32PtrOrNil(in.CallsiteLine)}}, chain...)
	}
	return chain
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func u32PtrOrNil(v uint32) *uint32 {
	if v == 0 {
		return nil
	}
	return &v
}

// Index entry for the .symindex sidecar (§6).
type indexEntry struct {
	Address    uint32
	FileOffset uint64
}

var symindexMagic = [4]byte{'s', 'i', 'd', 'x'}

// BuildIndex builds the .symindex sidecar bytes for data, mapping each
// FUNC line's address to the byte offset of that FUNC line within
// data, sorted by address (§6).
func BuildIndex(data []byte) ([]byte, error) {
	var entries []indexEntry
	offset := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if bytes.HasPrefix(line, []byte("FUNC")) {
			fields := strings.Fields(string(line))
			i := 1
			if i < len(fields) && fields[i] == "m" {
				i++
			}
			if i < len(fields) {
				if addr, err := strconv.ParseUint(fields[i], 16, 32); err == nil {
					entries = append(entries, indexEntry{Address: uint32(addr), FileOffset: uint64(offset)})
				}
			}
		}
		offset += len(line) + 1
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })

	var buf bytes.Buffer
	buf.Write(symindexMagic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		binary.Write(&buf, binary.LittleEndian, e.Address)
		binary.Write(&buf, binary.LittleEndian, e.FileOffset)
	}
	return buf.Bytes(), nil
}

// ErrBadIndex is returned by ReadIndex for a corrupt sidecar.
var ErrBadIndex = errors.New("breakpad: malformed .symindex file")

// ReadIndex parses .symindex sidecar bytes back into entries sorted by
// address, letting a caller seek directly to a FUNC line instead of
// rescanning the whole .sym file.
func ReadIndex(data []byte) ([]uint32, []uint64, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], symindexMagic[:]) {
		return nil, nil, ErrBadIndex
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != 1 {
		return nil, nil, fmt.Errorf("%w: version %d", ErrBadIndex, version)
	}
	count := binary.LittleEndian.Uint32(data[8:12])
	const recordSize = 4 + 8
	want := 12 + int(count)*recordSize
	if len(data) < want {
		return nil, nil, ErrBadIndex
	}
	addrs := make([]uint32, count)
	offsets := make([]uint64, count)
	p := data[12:]
	for i := uint32(0); i < count; i++ {
		addrs[i] = binary.LittleEndian.Uint32(p[:4])
		offsets[i] = binary.LittleEndian.Uint64(p[4:12])
		p = p[recordSize:]
	}
	return addrs, offsets, nil
}
