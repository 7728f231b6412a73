// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package profile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tracewell/profcore/debugid"
)

func newTestProfile(t *testing.T) *Profile {
	t.Helper()
	return New(Options{ReferenceTimestamp: time.Unix(1700000000, 0), AppVersion: "test-1.0"})
}

func TestProfileBasicSerializeRoundTrip(t *testing.T) {
	p := newTestProfile(t)

	libHandle := p.HandleForLib(LibraryInfo{
		Name: "libexample.so", DebugName: "libexample.so",
		DebugID: debugid.FromBytes([16]byte{1, 2, 3, 4}, 0),
	})

	proc := p.AddProcess("1234", "testproc", p.ReferenceTimestamp)
	p.Process(proc).LibMappings.AddLibMapping(0x1000, 0x2000, 0, libHandle)

	th := p.AddThread(proc, 1, p.ReferenceTimestamp, "main", true)

	frame := p.HandleForFrameWithAddress(proc, th, 0x1500, SubcategoryHandle{}, false, "do_work")
	stack := p.HandleForStack(th, RootStackIndex, frame)

	thr := p.Thread(th)
	stackCopy := stack
	thr.Samples.AddSample(&stackCopy, p.ReferenceTimestamp.Add(time.Millisecond), time.Microsecond*500, 1)

	out, err := p.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("Serialize() produced invalid JSON: %v", err)
	}
	if _, ok := doc["meta"]; !ok {
		t.Fatalf("serialized document missing %q key", "meta")
	}
	libs, ok := doc["libs"].([]interface{})
	if !ok || len(libs) != 1 {
		t.Fatalf("libs = %#v, want a single-element array (only used libs are serialized)", doc["libs"])
	}
	threads, ok := doc["threads"].([]interface{})
	if !ok || len(threads) != 1 {
		t.Fatalf("threads = %#v, want a single-element array", doc["threads"])
	}
}

func TestProfileMutationAfterSerializePanics(t *testing.T) {
	p := newTestProfile(t)
	if _, err := p.Serialize(); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	defer func() {
		r := recover()
		if r != ErrSealed {
			t.Fatalf("recovered %v, want ErrSealed", r)
		}
	}()
	p.AddProcess("1", "x", time.Now())
}

func TestProfileLongStackIsElidedOnSerialize(t *testing.T) {
	p := newTestProfile(t)
	proc := p.AddProcess("1", "p", p.ReferenceTimestamp)
	th := p.AddThread(proc, 1, p.ReferenceTimestamp, "main", true)
	thr := p.Thread(th)

	n := 600
	stack := RootStackIndex
	for i := 0; i < n; i++ {
		frame := p.HandleForFrameWithAddress(proc, th, uint64(i+1), SubcategoryHandle{}, false, "f")
		stack = p.HandleForStack(th, stack, frame)
	}
	stackCopy := stack
	thr.Samples.AddSample(&stackCopy, p.ReferenceTimestamp, 0, 1)

	out, err := p.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	var doc struct {
		Threads []struct {
			StackTable struct{ Length int } `json:"stackTable"`
			FuncTable  struct {
				Name []int `json:"name"`
			} `json:"funcTable"`
		} `json:"threads"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	k := ((n - 300) / 200) * 200
	want := elisionKeepEnds + 1 + (n - elisionKeepEnds - k)
	if got := doc.Threads[0].StackTable.Length; got != want {
		t.Fatalf("serialized stackTable.length = %d, want %d (elision must collapse the long chain)", got, want)
	}
}
