// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

// FrameLocationKind discriminates a FrameLocation variant (§3.1).
type FrameLocationKind int

const (
	// FrameLocationAddressInLib means the frame's address column holds
	// a relative address plus the global library it belongs to.
	FrameLocationAddressInLib FrameLocationKind = iota
	// FrameLocationUnknownAddress means only a raw, unresolved address
	// is known.
	FrameLocationUnknownAddress
	// FrameLocationLabel means the frame is a synthetic label (e.g. the
	// "(N frames elided)" marker of §4.1.5) rather than real code.
	FrameLocationLabel
)

// FrameLocation is the tagged variant `{AddressInLib(rva, lib) |
// UnknownAddress(u64) | Label(StringIndex)}` from §3.1.
type FrameLocation struct {
	Kind FrameLocationKind

	RVA uint32         // valid when Kind == FrameLocationAddressInLib
	Lib GlobalLibIndex // valid when Kind == FrameLocationAddressInLib

	UnknownAddress uint64 // valid when Kind == FrameLocationUnknownAddress

	Label StringIndex // valid when Kind == FrameLocationLabel
}

// AddressInLib builds a FrameLocation pointing at a relative address
// within a used library.
func AddressInLib(rva uint32, lib GlobalLibIndex) FrameLocation {
	return FrameLocation{Kind: FrameLocationAddressInLib, RVA: rva, Lib: lib}
}

// UnknownAddressLocation builds a FrameLocation for an address with no
// known owning library.
func UnknownAddressLocation(addr uint64) FrameLocation {
	return FrameLocation{Kind: FrameLocationUnknownAddress, UnknownAddress: addr}
}

// LabelLocation builds a synthetic, non-code FrameLocation.
func LabelLocation(label StringIndex) FrameLocation {
	return FrameLocation{Kind: FrameLocationLabel, Label: label}
}

// FrameFlags is a bitset of per-frame flags (§3.1).
type FrameFlags uint8

const (
	FrameIsJS FrameFlags = 1 << iota
	FrameIsRelevantForJS
)

// frameKey is the dedup key for interning a frame by its full
// semantic identity, used by HandleForFrame.
type frameKey struct {
	loc          FrameLocation
	category     SubcategoryHandle
	hasCategory  bool
	fn           FuncIndex
	nativeSym    NativeSymbolIndex
	hasNativeSym bool
	line, column int32 // -1 means absent
	inlineDepth  uint16
	flags        FrameFlags
}

// FrameTable is a per-thread table of call-stack leaf frames (§3.1).
type FrameTable struct {
	address     []FrameLocation
	category    []SubcategoryHandle
	hasCategory []bool
	fn          []FuncIndex
	nativeSym   []NativeSymbolIndex
	hasNative   []bool
	line        []int32
	column      []int32
	inlineDepth []uint16
	flags       []FrameFlags

	index map[frameKey]FrameIndex
}

// NewFrameTable returns an empty FrameTable.
func NewFrameTable() *FrameTable {
	return &FrameTable{index: make(map[frameKey]FrameIndex)}
}

// FrameParams describes a frame to intern via HandleForFrame.
type FrameParams struct {
	Address     FrameLocation
	Category    SubcategoryHandle
	HasCategory bool
	Func        FuncIndex
	NativeSym   NativeSymbolIndex
	HasNative   bool
	Line        *int32
	Column      *int32
	InlineDepth uint16
	Flags       FrameFlags
}

// HandleForFrame interns a frame, returning its stable handle.
func (t *FrameTable) HandleForFrame(p FrameParams) FrameIndex {
	line := int32(-1)
	if p.Line != nil {
		line = *p.Line
	}
	column := int32(-1)
	if p.Column != nil {
		column = *p.Column
	}
	key := frameKey{
		loc: p.Address, category: p.Category, hasCategory: p.HasCategory,
		fn: p.Func, nativeSym: p.NativeSym, hasNativeSym: p.HasNative,
		line: line, column: column, inlineDepth: p.InlineDepth, flags: p.Flags,
	}
	if idx, ok := t.index[key]; ok {
		return idx
	}
	idx := FrameIndex(len(t.address))
	t.address = append(t.address, p.Address)
	t.category = append(t.category, p.Category)
	t.hasCategory = append(t.hasCategory, p.HasCategory)
	t.fn = append(t.fn, p.Func)
	t.nativeSym = append(t.nativeSym, p.NativeSym)
	t.hasNative = append(t.hasNative, p.HasNative)
	t.line = append(t.line, line)
	t.column = append(t.column, column)
	t.inlineDepth = append(t.inlineDepth, p.InlineDepth)
	t.flags = append(t.flags, p.Flags)
	t.index[key] = idx
	return idx
}

// Len returns the number of frame rows.
func (t *FrameTable) Len() int { return len(t.address) }

// Category returns the frame's own category and whether one was set
// (a frame with no category inherits one at serialize time, §4.1.3).
func (t *FrameTable) Category(idx FrameIndex) (SubcategoryHandle, bool) {
	return t.category[idx], t.hasCategory[idx]
}

// Func returns the FuncIndex a frame resolves to.
func (t *FrameTable) Func(idx FrameIndex) FuncIndex {
	return t.fn[idx]
}

// Address returns a frame's location.
func (t *FrameTable) Address(idx FrameIndex) FrameLocation {
	return t.address[idx]
}

// NativeSymbol returns a frame's native symbol reference, if any.
func (t *FrameTable) NativeSymbol(idx FrameIndex) (NativeSymbolIndex, bool) {
	return t.nativeSym[idx], t.hasNative[idx]
}

// Line returns a frame's source line, if known.
func (t *FrameTable) Line(idx FrameIndex) (int32, bool) {
	l := t.line[idx]
	return l, l >= 0
}

// Column returns a frame's source column, if known.
func (t *FrameTable) Column(idx FrameIndex) (int32, bool) {
	c := t.column[idx]
	return c, c >= 0
}

// InlineDepth returns a frame's inline-expansion depth (0 for a
// non-inlined frame).
func (t *FrameTable) InlineDepth(idx FrameIndex) uint16 {
	return t.inlineDepth[idx]
}

// Flags returns a frame's flag bitset.
func (t *FrameTable) Flags(idx FrameIndex) FrameFlags {
	return t.flags[idx]
}
