// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

// computeStackCategories fills in t.category by a single forward pass
// in insertion order (§4.1.3). Stacks are interned in an order where a
// prefix always precedes its children (HandleForStack can only
// reference an already-existing prefix), so one pass suffices.
func computeStackCategories(ft *FrameTable, st *StackTable, defaultCat CategoryIndex) {
	st.category = make([]SubcategoryHandle, st.Len())
	for i := 0; i < st.Len(); i++ {
		idx := StackIndex(i)
		frame := st.Frame(idx)
		if cat, ok := ft.Category(frame); ok {
			st.category[i] = cat
			continue
		}
		prefix := st.Prefix(idx)
		if prefix != noPrefix {
			st.category[i] = st.category[prefix]
		} else {
			st.category[i] = SubcategoryHandle{Category: defaultCat}
		}
	}
}

// StackCategory returns the derived category for idx. Must be called
// after computeStackCategories has run (i.e. during/after Serialize).
func (t *StackTable) StackCategory(idx StackIndex) SubcategoryHandle {
	return t.category[idx]
}

// resolveFuncResources assigns each function with a known library the
// ResourceIndex obtained from resourceForLib (§4.1.3), interning the
// library's name into the thread's string table for the resource row.
func resolveFuncResources(th *Thread, libs *LibraryTable) {
	ft := th.FuncTable
	for i := 0; i < ft.Len(); i++ {
		idx := FuncIndex(i)
		libHandle, ok := ft.Lib(idx)
		if !ok {
			continue
		}
		info := libs.Get(libHandle)
		nameHandle := th.stringTable.HandleForString(info.Name)
		res := th.HandleForResourceForLib(libHandle, nameHandle)
		ft.SetResource(idx, res)
	}
}
