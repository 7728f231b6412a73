// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import "time"

// Timestamp is a point in time within a capture. It serializes as
// float milliseconds since the Profile's reference timestamp (§4.1.6).
type Timestamp = time.Time

// msSince returns t as float milliseconds elapsed since ref, or 0.0 if
// t is the zero value (an "absent" optional timestamp, §4.1.6).
func msSince(ref time.Time, t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Sub(ref)) / float64(time.Millisecond)
}
