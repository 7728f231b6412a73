// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

// Handles are opaque newtypes over a table row index. They are never
// reordered and never reused: once handed out, a handle stays valid
// for the lifetime of the owning Profile.

// StringIndex references a row of a StringTable.
type StringIndex int

// CategoryIndex references a row of the CategoryTable.
type CategoryIndex int

// SubcategoryHandle identifies a category together with a subcategory
// slot within it. Subcategory 0 always means "no subcategory".
type SubcategoryHandle struct {
	Category    CategoryIndex
	Subcategory int
}

// LibraryHandle references a row of the global LibraryTable.
type LibraryHandle int

// GlobalLibIndex references a row of the used-libraries projection
// emitted at serialize time (see §4.1.4 of the spec).
type GlobalLibIndex int

// ProcessHandle references a Process owned by a Profile.
type ProcessHandle int

// ThreadHandle references a Thread owned by a Process.
type ThreadHandle int

// StackIndex references a row of a thread's StackTable.
type StackIndex int

// FrameIndex references a row of a thread's FrameTable.
type FrameIndex int

// FuncIndex references a row of a thread's FuncTable.
type FuncIndex int

// ResourceIndex references a row of a thread's ResourceTable.
type ResourceIndex int

// NativeSymbolIndex references a row of a thread's NativeSymbols table.
type NativeSymbolIndex int

// CounterHandle references a Counter owned by a Process.
type CounterHandle int
