// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import (
	"encoding/json"
	"time"
)

// jsonDocument is the top-level shape emitted by Serialize (§4.1.6).
// Field order here is normative: it is the order the keys appear in
// the emitted object.
type jsonDocument struct {
	Meta     jsonMeta      `json:"meta"`
	Libs     []jsonLib     `json:"libs"`
	Counters []jsonCounter `json:"counters"`
	Threads  []jsonThread  `json:"threads"`
}

type jsonSampleUnits struct {
	Time           string `json:"time"`
	EventDelay     string `json:"eventDelay"`
	ThreadCPUDelta string `json:"threadCPUDelta"`
}

type jsonCategory struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	Subcategories []string `json:"subcategories"`
}

type jsonMeta struct {
	ReferenceTimestamp float64          `json:"referenceTimestamp"`
	Interval           float64          `json:"interval"`
	SampleUnits        jsonSampleUnits  `json:"sampleUnits"`
	Categories         []jsonCategory   `json:"categories"`
	MarkerSchemas      []json.RawMessage `json:"markerSchemas"`
	AppVersion         string           `json:"appVersion"`
}

type jsonLib struct {
	Name      string `json:"name"`
	DebugName string `json:"debugName"`
	Path      string `json:"path"`
	DebugPath string `json:"debugPath"`
	Arch      string `json:"arch,omitempty"`
	BreakpadID string `json:"breakpadId"`
	CodeID    string `json:"codeId,omitempty"`
}

type jsonCounterSamples struct {
	Length      int       `json:"length"`
	Time        []float64 `json:"time"`
	CountDelta  []float64 `json:"countDelta"`
	NumberDelta []int64   `json:"numberDelta"`
}

type jsonCounter struct {
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Description string             `json:"description"`
	Pid         string             `json:"pid"`
	Samples     jsonCounterSamples `json:"samples"`
}

type jsonStackTable struct {
	Length      int    `json:"length"`
	Prefix      []*int `json:"prefix"`
	Frame       []int  `json:"frame"`
	Category    []int  `json:"category"`
	Subcategory []int  `json:"subcategory"`
}

type jsonFrameTable struct {
	Length       int      `json:"length"`
	LocationKind []string `json:"locationKind"`
	Address      []int64  `json:"address"`
	Lib          []*int   `json:"lib"`
	Label        []*int   `json:"label"`
	Category     []int    `json:"category"`
	Subcategory  []int    `json:"subcategory"`
	Func         []int    `json:"func"`
	NativeSymbol []*int   `json:"nativeSymbol"`
	Line         []*int32 `json:"line"`
	Column       []*int32 `json:"column"`
	InlineDepth  []int    `json:"inlineDepth"`
	Flags        []int    `json:"flags"`
}

type jsonFuncTable struct {
	Length   int    `json:"length"`
	Name     []int  `json:"name"`
	File     []*int `json:"file"`
	Resource []*int `json:"resource"`
	Flags    []int  `json:"flags"`
}

type jsonResourceTable struct {
	Length int   `json:"length"`
	Lib    []int `json:"lib"`
	Name   []int `json:"name"`
	Type   []int `json:"type"`
}

type jsonNativeSymbolsTable struct {
	Length  int    `json:"length"`
	Lib     []int  `json:"lib"`
	Address []int  `json:"address"`
	Name    []int  `json:"name"`
	Size    []*int `json:"size"`
}

type jsonSampleTable struct {
	Length   int     `json:"length"`
	Stack    []*int  `json:"stack"`
	Time     []float64 `json:"time"`
	CPUDelta []int64 `json:"threadCPUDelta"`
	Weight   []int64 `json:"weight"`
}

type jsonMarkerTable struct {
	Length      int           `json:"length"`
	Name        []int         `json:"name"`
	Start       []float64     `json:"startTime"`
	End         []float64     `json:"endTime"`
	Phase       []int         `json:"phase"`
	Category    []int         `json:"category"`
	Subcategory []int         `json:"subcategory"`
	Data        []interface{} `json:"data"`
}

type jsonThread struct {
	TID                 int64                  `json:"tid"`
	PID                 string                 `json:"pid"`
	Name                string                 `json:"name"`
	ProcessStartupTime  float64                `json:"processStartupTime"`
	ProcessShutdownTime float64                `json:"processShutdownTime"`
	RegisterTime        float64                `json:"registerTime"`
	UnregisterTime      float64                `json:"unregisterTime"`
	IsMainThread        bool                   `json:"isMainThread"`
	StringArray         []string               `json:"stringArray"`
	StackTable          jsonStackTable         `json:"stackTable"`
	FrameTable          jsonFrameTable         `json:"frameTable"`
	FuncTable           jsonFuncTable          `json:"funcTable"`
	ResourceTable       jsonResourceTable      `json:"resourceTable"`
	NativeSymbols       jsonNativeSymbolsTable `json:"nativeSymbols"`
	Samples             jsonSampleTable        `json:"samples"`
	Markers             jsonMarkerTable        `json:"markers"`
}

// Serialize marshals the profile to its canonical JSON form (§4.1.6).
// Serialize seals the Profile: no further mutation is permitted after
// it returns, matching the append-only-then-immutable lifecycle of
// §3.1/§5. It is idempotent: calling it again re-serializes the same
// sealed state.
func (p *Profile) Serialize() ([]byte, error) {
	p.sealed = true

	doc := jsonDocument{
		Meta: jsonMeta{
			ReferenceTimestamp: float64(p.ReferenceTimestamp.UnixNano()) / 1e6,
			Interval:           1,
			SampleUnits: jsonSampleUnits{
				Time:           "ms",
				EventDelay:     "ms",
				ThreadCPUDelta: "µs",
			},
			AppVersion: p.AppVersion,
		},
	}
	for _, c := range p.Categories.Categories() {
		subs := c.Subcategories
		if subs == nil {
			subs = []string{}
		}
		doc.Meta.Categories = append(doc.Meta.Categories, jsonCategory{
			Name: c.Name, Color: string(c.Color), Subcategories: subs,
		})
	}

	for _, handle := range p.usedLibs.handles {
		info := p.Libraries.Get(handle)
		var codeID string
		if info.CodeID != nil {
			codeID = info.CodeID.String()
		}
		doc.Libs = append(doc.Libs, jsonLib{
			Name: info.Name, DebugName: info.DebugName, Path: info.Path,
			DebugPath: info.DebugPath, Arch: info.Arch,
			BreakpadID: info.DebugID.Breakpad(), CodeID: codeID,
		})
	}
	if doc.Libs == nil {
		doc.Libs = []jsonLib{}
	}

	for _, proc := range p.processes {
		for _, c := range proc.counters {
			doc.Counters = append(doc.Counters, serializeCounter(proc, c, p.ReferenceTimestamp))
		}
	}
	if doc.Counters == nil {
		doc.Counters = []jsonCounter{}
	}

	for _, th := range p.threads {
		doc.Threads = append(doc.Threads, p.serializeThread(th))
	}
	if doc.Threads == nil {
		doc.Threads = []jsonThread{}
	}

	return json.Marshal(doc)
}

func serializeCounter(proc *Process, c *Counter, ref time.Time) jsonCounter {
	out := jsonCounter{Name: c.Name, Category: c.Category, Description: c.Description, Pid: proc.PID}
	out.Samples.Length = c.Len()
	for i := range c.times {
		out.Samples.Time = append(out.Samples.Time, msSince(ref, c.times[i]))
		out.Samples.CountDelta = append(out.Samples.CountDelta, c.countDeltas[i])
		out.Samples.NumberDelta = append(out.Samples.NumberDelta, c.numberDeltas[i])
	}
	if out.Samples.Time == nil {
		out.Samples.Time = []float64{}
		out.Samples.CountDelta = []float64{}
		out.Samples.NumberDelta = []int64{}
	}
	return out
}

func intPtr(v int) *int { return &v }

func (p *Profile) serializeThread(th *Thread) jsonThread {
	proc := p.processes[th.Process]

	resolveFuncResources(th, p.Libraries)
	outFunc := cloneFuncTable(th.FuncTable)
	outFrame := NewFrameTable()
	outStack := NewStackTable()
	memo := make(map[StackIndex]StackIndex)

	buildOutputStack := func(leaf StackIndex) StackIndex {
		if v, ok := memo[leaf]; ok {
			return v
		}
		var chain []FrameIndex
		idx := leaf
		for idx != noPrefix {
			chain = append(chain, th.StackTable.Frame(idx))
			idx = th.StackTable.Prefix(idx)
		}
		elided := elideChain(chain)

		prevOut := noPrefix
		for i := len(elided) - 1; i >= 0; i-- {
			e := elided[i]
			var frameIdx FrameIndex
			if e.synthetic {
				label := th.stringTable.HandleForString(elidedLabel(e.elidedCount))
				fn := outFunc.HandleForFunc(FuncParams{Name: label})
				frameIdx = outFrame.HandleForFrame(FrameParams{Address: LabelLocation(label), Func: fn})
			} else {
				orig := e.frame
				cat, hasCat := th.FrameTable.Category(orig)
				native, hasNative := th.FrameTable.NativeSymbol(orig)
				var linePtr, colPtr *int32
				if l, ok := th.FrameTable.Line(orig); ok {
					lv := l
					linePtr = &lv
				}
				if c, ok := th.FrameTable.Column(orig); ok {
					cv := c
					colPtr = &cv
				}
				frameIdx = outFrame.HandleForFrame(FrameParams{
					Address:     th.FrameTable.Address(orig),
					Category:    cat,
					HasCategory: hasCat,
					Func:        th.FrameTable.Func(orig),
					NativeSym:   native,
					HasNative:   hasNative,
					Line:        linePtr,
					Column:      colPtr,
					InlineDepth: th.FrameTable.InlineDepth(orig),
					Flags:       th.FrameTable.Flags(orig),
				})
			}
			prevOut = outStack.HandleForStack(prevOut, frameIdx)
		}
		memo[leaf] = prevOut
		return prevOut
	}

	out := jsonThread{
		TID:                 th.TID,
		PID:                 proc.PID,
		Name:                th.Name,
		ProcessStartupTime:  msSince(p.ReferenceTimestamp, proc.StartTime),
		ProcessShutdownTime: msSince(p.ReferenceTimestamp, proc.EndTime),
		RegisterTime:        msSince(p.ReferenceTimestamp, th.StartTime),
		UnregisterTime:      msSince(p.ReferenceTimestamp, th.EndTime),
		IsMainThread:        th.IsMain,
		StringArray:         append([]string{}, th.stringTable.Strings()...),
	}

	out.Samples.Length = th.Samples.Len()
	for i := 0; i < th.Samples.Len(); i++ {
		var stackPtr *int
		if stack, ok := th.Samples.Stack(i); ok {
			newStack := buildOutputStack(stack)
			v := int(newStack)
			stackPtr = &v
		}
		out.Samples.Stack = append(out.Samples.Stack, stackPtr)
		out.Samples.Time = append(out.Samples.Time, msSince(p.ReferenceTimestamp, th.Samples.timestamp[i]))
		out.Samples.CPUDelta = append(out.Samples.CPUDelta, th.Samples.cpuDelta[i].Microseconds())
		out.Samples.Weight = append(out.Samples.Weight, th.Samples.weight[i])
	}
	fillEmptySampleColumns(&out.Samples)
	// Copied again here so the elided-frame labels interned by the
	// sample loop above are part of stringArray.
	out.StringArray = append([]string{}, th.stringTable.Strings()...)

	computeStackCategories(outFrame, outStack, p.Categories.Default())

	out.StackTable = serializeStackTable(outStack)
	out.FrameTable = serializeFrameTable(outFrame)
	out.FuncTable = serializeFuncTable(outFunc)
	out.ResourceTable = serializeResourceTable(th.ResourceTable)
	out.NativeSymbols = serializeNativeSymbols(th.NativeSymbols)
	out.Markers = serializeMarkerTable(th, p.ReferenceTimestamp)

	return out
}

func fillEmptySampleColumns(s *jsonSampleTable) {
	if s.Stack == nil {
		s.Stack = []*int{}
		s.Time = []float64{}
		s.CPUDelta = []int64{}
		s.Weight = []int64{}
	}
}

func serializeStackTable(t *StackTable) jsonStackTable {
	out := jsonStackTable{Length: t.Len()}
	for i := 0; i < t.Len(); i++ {
		idx := StackIndex(i)
		prefix := t.Prefix(idx)
		if prefix == noPrefix {
			out.Prefix = append(out.Prefix, nil)
		} else {
			out.Prefix = append(out.Prefix, intPtr(int(prefix)))
		}
		out.Frame = append(out.Frame, int(t.Frame(idx)))
		cat := t.StackCategory(idx)
		out.Category = append(out.Category, int(cat.Category))
		out.Subcategory = append(out.Subcategory, cat.Subcategory)
	}
	if out.Frame == nil {
		out.Prefix = []*int{}
		out.Frame = []int{}
		out.Category = []int{}
		out.Subcategory = []int{}
	}
	return out
}

func serializeFrameTable(t *FrameTable) jsonFrameTable {
	out := jsonFrameTable{Length: t.Len()}
	for i := 0; i < t.Len(); i++ {
		idx := FrameIndex(i)
		loc := t.Address(idx)
		switch loc.Kind {
		case FrameLocationAddressInLib:
			out.LocationKind = append(out.LocationKind, "addressInLib")
			out.Address = append(out.Address, int64(loc.RVA))
			out.Lib = append(out.Lib, intPtr(int(loc.Lib)))
			out.Label = append(out.Label, nil)
		case FrameLocationUnknownAddress:
			out.LocationKind = append(out.LocationKind, "unknownAddress")
			out.Address = append(out.Address, int64(loc.UnknownAddress))
			out.Lib = append(out.Lib, nil)
			out.Label = append(out.Label, nil)
		default: // FrameLocationLabel
			out.LocationKind = append(out.LocationKind, "label")
			out.Address = append(out.Address, -1)
			out.Lib = append(out.Lib, nil)
			out.Label = append(out.Label, intPtr(int(loc.Label)))
		}
		cat, _ := t.Category(idx)
		out.Category = append(out.Category, int(cat.Category))
		out.Subcategory = append(out.Subcategory, cat.Subcategory)
		out.Func = append(out.Func, int(t.Func(idx)))
		if ns, ok := t.NativeSymbol(idx); ok {
			out.NativeSymbol = append(out.NativeSymbol, intPtr(int(ns)))
		} else {
			out.NativeSymbol = append(out.NativeSymbol, nil)
		}
		if l, ok := t.Line(idx); ok {
			lv := l
			out.Line = append(out.Line, &lv)
		} else {
			out.Line = append(out.Line, nil)
		}
		if c, ok := t.Column(idx); ok {
			cv := c
			out.Column = append(out.Column, &cv)
		} else {
			out.Column = append(out.Column, nil)
		}
		out.InlineDepth = append(out.InlineDepth, int(t.InlineDepth(idx)))
		out.Flags = append(out.Flags, int(t.Flags(idx)))
	}
	if out.LocationKind == nil {
		out.LocationKind = []string{}
		out.Address = []int64{}
		out.Lib = []*int{}
		out.Label = []*int{}
		out.Category = []int{}
		out.Subcategory = []int{}
		out.Func = []int{}
		out.NativeSymbol = []*int{}
		out.Line = []*int32{}
		out.Column = []*int32{}
		out.InlineDepth = []int{}
		out.Flags = []int{}
	}
	return out
}

func serializeFuncTable(t *FuncTable) jsonFuncTable {
	out := jsonFuncTable{Length: t.Len()}
	for i := 0; i < t.Len(); i++ {
		idx := FuncIndex(i)
		out.Name = append(out.Name, int(t.Name(idx)))
		if f, ok := t.File(idx); ok {
			out.File = append(out.File, intPtr(int(f)))
		} else {
			out.File = append(out.File, nil)
		}
		if r, ok := t.Resource(idx); ok {
			out.Resource = append(out.Resource, intPtr(int(r)))
		} else {
			out.Resource = append(out.Resource, nil)
		}
		out.Flags = append(out.Flags, int(t.Flags(idx)))
	}
	if out.Name == nil {
		out.Name = []int{}
		out.File = []*int{}
		out.Resource = []*int{}
		out.Flags = []int{}
	}
	return out
}

func serializeResourceTable(t *ResourceTable) jsonResourceTable {
	out := jsonResourceTable{Length: t.Len()}
	for i := range t.lib {
		out.Lib = append(out.Lib, int(t.lib[i]))
		out.Name = append(out.Name, int(t.name[i]))
		out.Type = append(out.Type, int(ResourceTypeLib))
	}
	if out.Lib == nil {
		out.Lib = []int{}
		out.Name = []int{}
		out.Type = []int{}
	}
	return out
}

func serializeNativeSymbols(t *NativeSymbols) jsonNativeSymbolsTable {
	out := jsonNativeSymbolsTable{Length: t.Len()}
	for i := range t.lib {
		out.Lib = append(out.Lib, int(t.lib[i]))
		out.Address = append(out.Address, int(t.rva[i]))
		out.Name = append(out.Name, int(t.name[i]))
		if t.hasSz[i] {
			out.Size = append(out.Size, intPtr(int(t.size[i])))
		} else {
			out.Size = append(out.Size, nil)
		}
	}
	if out.Lib == nil {
		out.Lib = []int{}
		out.Address = []int{}
		out.Name = []int{}
		out.Size = []*int{}
	}
	return out
}

func serializeMarkerTable(th *Thread, ref time.Time) jsonMarkerTable {
	t := th.Markers
	out := jsonMarkerTable{Length: t.Len()}
	for i := 0; i < t.Len(); i++ {
		out.Name = append(out.Name, int(t.name[i]))
		out.Start = append(out.Start, msSince(ref, t.start[i]))
		out.End = append(out.End, msSince(ref, t.end[i]))
		out.Phase = append(out.Phase, int(t.phase[i]))
		out.Category = append(out.Category, int(t.category[i].Category))
		out.Subcategory = append(out.Subcategory, t.category[i].Subcategory)
		out.Data = append(out.Data, t.data[i])
	}
	if out.Name == nil {
		out.Name = []int{}
		out.Start = []float64{}
		out.End = []float64{}
		out.Phase = []int{}
		out.Category = []int{}
		out.Subcategory = []int{}
		out.Data = []interface{}{}
	}
	return out
}

// cloneFuncTable copies orig into a fresh FuncTable whose dedup index
// is rebuilt so further interning (e.g. a synthetic elided-frame func)
// continues to dedup correctly. Because orig's rows are already
// mutually distinct by construction, replaying them through
// HandleForFunc in order reproduces identical indices 1:1.
func cloneFuncTable(orig *FuncTable) *FuncTable {
	clone := NewFuncTable()
	for i := range orig.name {
		var filePtr *StringIndex
		if orig.hasFile[i] {
			f := orig.file[i]
			filePtr = &f
		}
		var libPtr *LibraryHandle
		if orig.hasLib[i] {
			l := orig.lib[i]
			libPtr = &l
		}
		newIdx := clone.HandleForFunc(FuncParams{
			Name: orig.name[i], File: filePtr, Lib: libPtr, Flags: orig.flags[i],
		})
		if orig.hasRes[i] {
			clone.SetResource(newIdx, orig.resource[i])
		}
	}
	return clone
}
