// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "time"

// MarkerPhase is the marker's temporal shape (§3.1).
type MarkerPhase int

const (
	MarkerInstant MarkerPhase = iota
	MarkerInterval
	MarkerIntervalStart
	MarkerIntervalEnd
)

// MarkerTable is a per-thread table of instant/interval markers
// (§3.1). Orphan IntervalStart/IntervalEnd markers are legal
// (invariant 6) and indicate activity crossing profile boundaries.
type MarkerTable struct {
	name     []StringIndex
	start    []time.Time
	end      []time.Time
	phase    []MarkerPhase
	category []SubcategoryHandle
	data     []interface{} // arbitrary JSON-marshalable payload
}

// NewMarkerTable returns an empty MarkerTable.
func NewMarkerTable() *MarkerTable {
	return &MarkerTable{}
}

// AddMarker appends a marker row.
func (t *MarkerTable) AddMarker(name StringIndex, start, end time.Time, phase MarkerPhase, category SubcategoryHandle, data interface{}) {
	t.name = append(t.name, name)
	t.start = append(t.start, start)
	t.end = append(t.end, end)
	t.phase = append(t.phase, phase)
	t.category = append(t.category, category)
	t.data = append(t.data, data)
}

// Len returns the number of markers.
func (t *MarkerTable) Len() int { return len(t.name) }
