// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package symbol

import (
	"fmt"
	"io"
)

// FileLocationKind discriminates FileLocation (§4.3.1).
type FileLocationKind int

const (
	FileLocationPath FileLocationKind = iota
	FileLocationURL
	FileLocationInDyldCache
)

// FileLocation is one of `Path(local fs path)`, `Url(symbol-server base
// + relative-key)`, or `InDyldCache{shared_cache, dylib_path}`
// (§4.3.1). Each has an Open operation producing a random-read byte
// source.
type FileLocation struct {
	Kind FileLocationKind

	Path string // valid when Kind == FileLocationPath

	URLBase string // valid when Kind == FileLocationURL
	URLKey  string

	SharedCachePath string // valid when Kind == FileLocationInDyldCache
	DylibPath       string
}

func (l FileLocation) String() string {
	switch l.Kind {
	case FileLocationPath:
		return l.Path
	case FileLocationURL:
		return l.URLBase + "/" + l.URLKey
	case FileLocationInDyldCache:
		return fmt.Sprintf("dyldcache:%s!%s", l.SharedCachePath, l.DylibPath)
	default:
		return "<unknown file location>"
	}
}

// RandomReaderAt is a closeable random-access byte source.
type RandomReaderAt interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// FileLocator opens the bytes behind a FileLocation, and is the
// extension point §4 (Supplemented features) uses to special-case the
// Linux vdso pseudo-library (a FileLocator implementation may hand
// back in-memory bytes it was pre-supplied instead of opening a real
// file).
type FileLocator interface {
	Open(loc FileLocation) (RandomReaderAt, error)
}
