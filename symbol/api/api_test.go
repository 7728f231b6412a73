// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewell/profcore/symbol"
)

const aOutSym = `MODULE Linux x86_64 1234567890ABCDEF1234567890ABCDEF0 a.out
FILE 0 /src/main.c
INLINE_ORIGIN 0 helper
FUNC 1000 20 0 main
1000 10 10 0
1010 10 11 0
INLINE 1 10 0 1 11 0
`

const bOutSym = `MODULE Linux x86_64 FEDCBA0987654321FEDCBA0987654321F b.out
FUNC 2000 10 0 worker
`

// memLocator serves fixed breakpad payloads keyed by path, implementing
// symbol.FileLocator without touching a real filesystem.
type memLocator struct{ byPath map[string][]byte }

type memReaderAt struct{ b []byte }

func (r memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(r.b).ReadAt(p, off)
}
func (r memReaderAt) Size() int64 { return int64(len(r.b)) }
func (r memReaderAt) Close() error { return nil }

func (l memLocator) Open(loc symbol.FileLocation) (symbol.RandomReaderAt, error) {
	b, ok := l.byPath[loc.Path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return memReaderAt{b: b}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	loc := memLocator{byPath: map[string][]byte{
		"/syms/a.out/1234567890ABCDEF1234567890ABCDEF0/a.out.sym": []byte(aOutSym),
		"/syms/b.out/FEDCBA0987654321FEDCBA0987654321F/b.out.sym": []byte(bOutSym),
	}}
	mgr := symbol.NewManager(symbol.ManagerConfig{
		Candidates: symbol.CandidateConfig{BreakpadDirs: []string{"/syms"}},
		Locator:    loc,
	})
	return NewServer(mgr, nil)
}

func doJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func TestHandleSymbolicateResolvesInlinesAndUnmappedFrames(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req := symbolicateRequest{
		Jobs: []symbolicateJob{
			{
				MemoryMap: [][2]string{
					{"a.out", "1234567890ABCDEF1234567890ABCDEF0"},
					{"unknown.out", "000000000000000000000000000000000"},
				},
				Stacks: [][][2]int{
					{{0, 0x1010}, {1, 0x10}},
				},
			},
		},
	}
	resp := doJSON(t, srv, "/symbolicate/v5", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out symbolicateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 1)

	result := out.Results[0]
	require.True(t, result.FoundModules["a.out/1234567890ABCDEF1234567890ABCDEF0"])
	require.False(t, result.FoundModules["unknown.out/000000000000000000000000000000000"])

	require.Len(t, result.Stacks, 1)
	require.Len(t, result.Stacks[0], 2)

	resolved := result.Stacks[0][0]
	require.Equal(t, "main", resolved.Function)
	require.Equal(t, "/src/main.c", resolved.File)
	require.Len(t, resolved.Inlines, 1)
	require.Equal(t, "helper", resolved.Inlines[0].Function)

	unmapped := result.Stacks[0][1]
	require.Empty(t, unmapped.Function)
	require.Equal(t, "0x10", unmapped.ModuleOffset)
}

func TestHandleSymbolicateRejectsNonPost(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/symbolicate/v5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleSymbolicateRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/symbolicate/v5", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleSourceReturnsFileWhenProducedByLookup(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req := sourceRequest{
		DebugName:    "a.out",
		DebugID:      "1234567890ABCDEF1234567890ABCDEF0",
		ModuleOffset: "0x1005",
		File:         "/src/main.c",
	}
	resp := doJSON(t, srv, "/source/v1", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "/src/main.c", out["file"])
}

func TestHandleSourceRejectsPathNotProducedAtAddress(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req := sourceRequest{
		DebugName:    "a.out",
		DebugID:      "1234567890ABCDEF1234567890ABCDEF0",
		ModuleOffset: "0x1005",
		File:         "/src/not_real.c",
	}
	resp := doJSON(t, srv, "/source/v1", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleSourceUnknownModuleReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req := sourceRequest{
		DebugName:    "missing.out",
		DebugID:      "000000000000000000000000000000000",
		ModuleOffset: "0x0",
		File:         "/src/main.c",
	}
	resp := doJSON(t, srv, "/source/v1", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleSourceMalformedDebugIDReturnsBadRequest(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req := sourceRequest{
		DebugName:    "a.out",
		DebugID:      "not-a-debug-id",
		ModuleOffset: "0x0",
		File:         "/src/main.c",
	}
	resp := doJSON(t, srv, "/source/v1", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
