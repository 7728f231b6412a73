// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "time"

// Thread is one captured thread. It owns a set of private tables that
// reference into the process-/profile-scoped tables (§3.1). Per §9,
// a Thread references its owning Process by handle, not by pointer.
type Thread struct {
	Process   ProcessHandle
	TID       int64
	StartTime time.Time
	EndTime   time.Time
	Name      string
	IsMain    bool

	Samples       *SampleTable
	Markers       *MarkerTable
	StackTable    *StackTable
	FrameTable    *FrameTable
	FuncTable     *FuncTable
	ResourceTable *ResourceTable
	NativeSymbols *NativeSymbols
	stringTable   *StringTable
}

func newThread(process ProcessHandle, tid int64, startTime time.Time, name string, isMain bool) *Thread {
	return &Thread{
		Process:       process,
		TID:           tid,
		StartTime:     startTime,
		Name:          name,
		IsMain:        isMain,
		Samples:       NewSampleTable(),
		Markers:       NewMarkerTable(),
		StackTable:    NewStackTable(),
		FrameTable:    NewFrameTable(),
		FuncTable:     NewFuncTable(),
		ResourceTable: NewResourceTable(),
		NativeSymbols: NewNativeSymbols(),
		stringTable:   NewStringTable(),
	}
}

// SetEndTime records when the thread exited.
func (t *Thread) SetEndTime(end time.Time) {
	t.EndTime = end
}

// Strings returns the thread-local string table used for frame/func
// names that do not need to be deduplicated profile-wide (§3.1).
func (t *Thread) Strings() *StringTable {
	return t.stringTable
}

// HandleForResourceForLib interns the resource row for lib, using name
// (a thread-local string handle) on first reference.
func (t *Thread) HandleForResourceForLib(lib LibraryHandle, name StringIndex) ResourceIndex {
	return t.ResourceTable.resourceForLib(lib, name)
}
