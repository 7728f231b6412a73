// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package debugid

import "encoding/binary"

func byteOrderFor(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func putUint32BE(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func putUint16BE(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
