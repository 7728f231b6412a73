// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "time"

// Counter is a per-process named numeric time series, e.g. memory
// usage or a custom instrumentation counter (§3.1).
type Counter struct {
	Name        string
	Category    string
	Description string

	times        []time.Time
	countDeltas  []float64
	numberDeltas []int64
}

// NewCounter returns an empty Counter.
func NewCounter(name, category, description string) *Counter {
	return &Counter{Name: name, Category: category, Description: description}
}

// AddSample appends one counter sample.
func (c *Counter) AddSample(t time.Time, countDelta float64, numberDelta int64) {
	c.times = append(c.times, t)
	c.countDeltas = append(c.countDeltas, countDelta)
	c.numberDeltas = append(c.numberDeltas, numberDelta)
}

// Len returns the number of samples recorded.
func (c *Counter) Len() int {
	return len(c.times)
}
