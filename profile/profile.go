// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package profile implements the processed-profile model (component P
// of the spec): deduplicated, handle-referenced tables for processes,
// threads, samples, stacks, frames, functions, resources, and
// libraries, plus the stable JSON serialization an external profiler
// UI consumes.
package profile

import (
	"errors"
	"time"

	"github.com/tracewell/profcore/internal/xlog"
)

// ErrSealed is the value a Profile's mutating methods panic with when
// called after Serialize has begun (§3.1 "Lifecycles": "Once
// serialization begins, no further mutation is allowed").
var ErrSealed = errors.New("profile: mutation attempted after serialization began")

// Profile is the single-owner, append-only builder for one captured
// trace. It is not safe for concurrent mutation (§5: "Single-owner
// construction... No internal locking; concurrent mutation is a
// caller error").
type Profile struct {
	log *xlog.Helper

	Strings    *StringTable
	Categories *CategoryTable
	Libraries  *LibraryTable

	ReferenceTimestamp time.Time
	AppVersion         string

	processes []*Process
	threads   []*Thread

	// usedLibs is the profile-wide used-libraries projection (§4.1.4):
	// a single index space shared by every thread's FrameTable, since
	// the serialized "libs" array is a single top-level list (§4.1.6),
	// not one per thread.
	usedLibs *usedLibs

	sealed bool
}

// Options configures Profile construction, following the teacher's
// plain-struct-of-knobs convention (pe.Options, §2.3 of SPEC_FULL).
type Options struct {
	// ReferenceTimestamp anchors all serialized timestamps (§4.1.6).
	// Defaults to time.Now() if zero.
	ReferenceTimestamp time.Time

	// AppVersion is recorded in meta.appVersion.
	AppVersion string

	// Logger receives diagnostic output; defaults to a filtered
	// stdout logger (xlog.Default()) if nil.
	Logger xlog.Logger
}

// New returns an empty Profile with the mandatory default category
// already interned (§3.1).
func New(opts Options) *Profile {
	ref := opts.ReferenceTimestamp
	if ref.IsZero() {
		ref = time.Now()
	}
	var helper *xlog.Helper
	if opts.Logger != nil {
		helper = xlog.NewHelper(opts.Logger)
	} else {
		helper = xlog.Default()
	}
	return &Profile{
		log:                helper,
		Strings:            NewStringTable(),
		Categories:         NewCategoryTable(),
		Libraries:          NewLibraryTable(),
		ReferenceTimestamp: ref,
		AppVersion:         opts.AppVersion,
		usedLibs:           newUsedLibs(),
	}
}

// IndexForUsedLib returns lib's position in the profile-wide
// used-libraries projection, appending it on first reference (§4.1.4).
func (p *Profile) IndexForUsedLib(lib LibraryHandle) GlobalLibIndex {
	return p.usedLibs.indexForUsedLib(lib)
}

func (p *Profile) checkMutable() {
	if p.sealed {
		panic(ErrSealed)
	}
}

// AddProcess registers a new process, returning its handle.
func (p *Profile) AddProcess(pid, name string, startTime time.Time) ProcessHandle {
	p.checkMutable()
	proc := newProcess(pid, name, startTime)
	handle := ProcessHandle(len(p.processes))
	p.processes = append(p.processes, proc)
	return handle
}

// Process returns the process behind handle.
func (p *Profile) Process(handle ProcessHandle) *Process {
	return p.processes[handle]
}

// AddThread registers a new thread under process, returning its
// handle. The thread is appended to the owning process's thread list.
func (p *Profile) AddThread(process ProcessHandle, tid int64, startTime time.Time, name string, isMain bool) ThreadHandle {
	p.checkMutable()
	th := newThread(process, tid, startTime, name, isMain)
	handle := ThreadHandle(len(p.threads))
	p.threads = append(p.threads, th)
	p.processes[process].threads = append(p.processes[process].threads, handle)
	return handle
}

// Thread returns the thread behind handle.
func (p *Profile) Thread(handle ThreadHandle) *Thread {
	return p.threads[handle]
}

// AddCounter registers a new counter under process.
func (p *Profile) AddCounter(process ProcessHandle, counter *Counter) {
	p.checkMutable()
	p.processes[process].counters = append(p.processes[process].counters, counter)
}

// HandleForLib interns a library into the global LibraryTable.
func (p *Profile) HandleForLib(info LibraryInfo) LibraryHandle {
	p.checkMutable()
	return p.Libraries.HandleForLib(info)
}

// HandleForFrameWithAddress interns a frame located at an AVMA within
// a process, translating it through the process's LibMappings first.
// If the address is not covered by any mapping, the frame is recorded
// as UnknownAddress (§3.1 FrameLocation variants).
func (p *Profile) HandleForFrameWithAddress(process ProcessHandle, thread ThreadHandle, avma uint64, category SubcategoryHandle, hasCategory bool, funcName string) FrameIndex {
	p.checkMutable()
	th := p.threads[thread]
	proc := p.processes[process]

	rva, libHandle, ok := proc.LibMappings.Lookup(avma)
	if !ok {
		fn := th.FuncTable.HandleForFunc(FuncParams{Name: th.stringTable.HandleForString(funcName)})
		return th.FrameTable.HandleForFrame(FrameParams{
			Address:     UnknownAddressLocation(avma),
			Category:    category,
			HasCategory: hasCategory,
			Func:        fn,
		})
	}

	globalLib := p.IndexForUsedLib(libHandle)
	lib := libHandle
	fn := th.FuncTable.HandleForFunc(FuncParams{
		Name: th.stringTable.HandleForString(funcName),
		Lib:  &lib,
	})
	return th.FrameTable.HandleForFrame(FrameParams{
		Address:     AddressInLib(rva, globalLib),
		Category:    category,
		HasCategory: hasCategory,
		Func:        fn,
	})
}

// HandleForStack interns a stack row for thread, returning its handle
// (§4.1.2). Pass noPrefix for a root stack.
func (p *Profile) HandleForStack(thread ThreadHandle, prefix StackIndex, frame FrameIndex) StackIndex {
	p.checkMutable()
	return p.threads[thread].StackTable.HandleForStack(prefix, frame)
}

// RootStackIndex is the public spelling of the "no prefix" sentinel
// used when building a root stack.
const RootStackIndex = noPrefix
