// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "time"

// SampleTable is a per-thread table of stack samples (§3.1).
type SampleTable struct {
	stack     []StackIndex
	hasStack  []bool
	timestamp []time.Time
	cpuDelta  []time.Duration
	weight    []int64
}

// NewSampleTable returns an empty SampleTable.
func NewSampleTable() *SampleTable {
	return &SampleTable{}
}

// AddSample appends a sample. stack may be nil for an idle sample with
// no captured call stack. weight defaults to 1 when zero is passed,
// matching §3.1's documented default.
func (t *SampleTable) AddSample(stack *StackIndex, timestamp time.Time, cpuDelta time.Duration, weight int64) {
	if weight == 0 {
		weight = 1
	}
	if stack != nil {
		t.stack = append(t.stack, *stack)
		t.hasStack = append(t.hasStack, true)
	} else {
		t.stack = append(t.stack, 0)
		t.hasStack = append(t.hasStack, false)
	}
	t.timestamp = append(t.timestamp, timestamp)
	t.cpuDelta = append(t.cpuDelta, cpuDelta)
	t.weight = append(t.weight, weight)
}

// Len returns the number of samples.
func (t *SampleTable) Len() int { return len(t.timestamp) }

// Stack returns the stack referenced by sample i, if any.
func (t *SampleTable) Stack(i int) (StackIndex, bool) {
	return t.stack[i], t.hasStack[i]
}
