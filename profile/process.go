// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "time"

// Process is one captured OS process. Per §9 "Cyclic references",
// a Process owns its threads by handle, not by pointer, and counters
// by handle as well.
type Process struct {
	PID       string
	Name      string
	StartTime time.Time
	EndTime   time.Time // zero if still running when the capture ended

	threads     []ThreadHandle
	LibMappings *LibMappings

	counters []*Counter
}

func newProcess(pid, name string, startTime time.Time) *Process {
	return &Process{
		PID:         pid,
		Name:        name,
		StartTime:   startTime,
		LibMappings: NewLibMappings(),
	}
}

// Threads returns the handles of threads owned by this process, in
// creation order.
func (p *Process) Threads() []ThreadHandle {
	return p.threads
}

// SetEndTime records when the process exited (the one retraction
// operation the lifecycle rules allow for a Process, §3.1).
func (p *Process) SetEndTime(t time.Time) {
	p.EndTime = t
}

// Counters returns the counters owned by this process, in creation
// order.
func (p *Process) Counters() []*Counter {
	return p.counters
}
