// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import (
	"testing"
	"time"
)

func TestComputeStackCategoriesInheritsFromPrefix(t *testing.T) {
	cats := NewCategoryTable()
	js := cats.HandleForCategory(Category{Name: "JavaScript", Color: ColorYellow})

	ft := NewFrameTable()
	st := NewStackTable()

	fnTagged := FuncIndex(0)
	fnBare := FuncIndex(1)

	// Root frame carries an explicit category.
	taggedFrame := ft.HandleForFrame(FrameParams{
		Address: UnknownAddressLocation(1), Category: SubcategoryHandle{Category: js}, HasCategory: true, Func: fnTagged,
	})
	// Child frame has no category of its own: must inherit from its
	// prefix (§4.1.3).
	bareFrame := ft.HandleForFrame(FrameParams{
		Address: UnknownAddressLocation(2), Func: fnBare,
	})

	root := st.HandleForStack(noPrefix, taggedFrame)
	child := st.HandleForStack(root, bareFrame)
	// A second root-level stack whose frame also has no category must
	// fall back to the table's default category.
	untaggedRoot := st.HandleForStack(noPrefix, bareFrame)

	computeStackCategories(ft, st, cats.Default())

	if got := st.StackCategory(root).Category; got != js {
		t.Fatalf("root category = %v, want %v", got, js)
	}
	if got := st.StackCategory(child).Category; got != js {
		t.Fatalf("child did not inherit prefix category, got %v, want %v", got, js)
	}
	if got := st.StackCategory(untaggedRoot).Category; got != cats.Default() {
		t.Fatalf("untagged root category = %v, want default %v", got, cats.Default())
	}
}

func TestResolveFuncResources(t *testing.T) {
	libs := NewLibraryTable()
	libHandle := libs.HandleForLib(LibraryInfo{Name: "libfoo.so"})

	th := newThread(ProcessHandle(0), 1, time.Now(), "main", true)
	lib := libHandle
	fn := th.FuncTable.HandleForFunc(FuncParams{
		Name: th.stringTable.HandleForString("do_work"),
		Lib:  &lib,
	})

	resolveFuncResources(th, libs)

	res, ok := th.FuncTable.Resource(fn)
	if !ok {
		t.Fatalf("function with a known library has no resolved resource")
	}
	if th.ResourceTable.Len() != 1 {
		t.Fatalf("ResourceTable.Len() = %d, want 1", th.ResourceTable.Len())
	}
	if int(res) != 0 {
		t.Fatalf("Resource() = %d, want 0", res)
	}
}
