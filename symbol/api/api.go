// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Package api exposes symbol.Manager over the Tecken-compatible HTTP
// surface from §6: `/symbolicate/v5` and `/source/v1`.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/internal/xlog"
	"github.com/tracewell/profcore/symbol"
)

// Server adapts a symbol.Manager to the Tecken wire protocol.
type Server struct {
	Manager *symbol.Manager
	Log     *xlog.Helper
}

// NewServer returns a Server backed by mgr, logging through logger.
func NewServer(mgr *symbol.Manager, logger xlog.Logger) *Server {
	if logger == nil {
		logger = xlog.Nop
	}
	return &Server{Manager: mgr, Log: xlog.NewHelper(logger)}
}

// Routes registers the Tecken endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/symbolicate/v5", s.handleSymbolicate)
	mux.HandleFunc("/source/v1", s.handleSource)
}

type symbolicateJob struct {
	MemoryMap [][2]string `json:"memoryMap"`
	Stacks    [][][2]int  `json:"stacks"`
}

type symbolicateRequest struct {
	Jobs []symbolicateJob `json:"jobs"`
}

type symbolicatedFrame struct {
	Function       string        `json:"function,omitempty"`
	FunctionOffset string        `json:"function_offset,omitempty"`
	File           string        `json:"file,omitempty"`
	Line           uint32        `json:"line,omitempty"`
	Module         string        `json:"module,omitempty"`
	ModuleOffset   string        `json:"module_offset"`
	Inlines        []inlineFrame `json:"inlines,omitempty"`
}

type inlineFrame struct {
	Function string `json:"function"`
	File     string `json:"file,omitempty"`
	Line     uint32 `json:"line,omitempty"`
}

type symbolicateJobResult struct {
	Stacks       [][]symbolicatedFrame `json:"stacks"`
	FoundModules map[string]bool       `json:"found_modules"`
}

type symbolicateResponse struct {
	Results []symbolicateJobResult `json:"results"`
}

// handleSymbolicate implements `/symbolicate/v5` (§6): a batch of jobs,
// each with a memoryMap of (debugName, breakpadID) pairs and a list of
// stacks, where each stack frame is [moduleIndex, moduleOffset] (-1
// moduleIndex means an unmapped address).
func (s *Server) handleSymbolicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req symbolicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	resp := symbolicateResponse{Results: make([]symbolicateJobResult, len(req.Jobs))}
	for ji, job := range req.Jobs {
		resp.Results[ji] = s.symbolicateJob(r.Context(), job)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) symbolicateJob(ctx context.Context, job symbolicateJob) symbolicateJobResult {
	result := symbolicateJobResult{FoundModules: make(map[string]bool)}
	maps := make([]symbol.SymbolMap, len(job.MemoryMap))

	for i, mod := range job.MemoryMap {
		debugName, breakpadID := mod[0], mod[1]
		key := fmt.Sprintf("%s/%s", debugName, breakpadID)
		id, err := debugid.ParseBreakpad(breakpadID)
		if err != nil {
			result.FoundModules[key] = false
			continue
		}
		sm, err := s.Manager.GetSymbolMap(ctx, debugName, id, nil)
		if err != nil {
			s.Log.Debugf("symbolicate: %s: %v", key, err)
			result.FoundModules[key] = false
			continue
		}
		maps[i] = sm
		result.FoundModules[key] = true
	}

	for _, stack := range job.Stacks {
		var frames []symbolicatedFrame
		for _, entry := range stack {
			moduleIndex, offset := entry[0], entry[1]
			frames = append(frames, s.symbolicateFrame(maps, moduleIndex, offset))
		}
		result.Stacks = append(result.Stacks, frames)
	}

	for _, sm := range maps {
		if sm != nil {
			sm.Close()
		}
	}
	return result
}

func (s *Server) symbolicateFrame(maps []symbol.SymbolMap, moduleIndex, offset int) symbolicatedFrame {
	out := symbolicatedFrame{ModuleOffset: fmt.Sprintf("0x%x", offset)}
	if moduleIndex < 0 || moduleIndex >= len(maps) || maps[moduleIndex] == nil {
		return out
	}
	sm := maps[moduleIndex]
	info, ok := sm.Lookup(uint32(offset))
	if !ok {
		return out
	}
	out.Function = info.Symbol.Name
	out.FunctionOffset = fmt.Sprintf("0x%x", uint32(offset)-info.Symbol.Address)

	if info.Frames.Kind == symbol.FramesAvailable && len(info.Frames.Frames) > 0 {
		leaf := info.Frames.Frames[len(info.Frames.Frames)-1]
		if leaf.FilePath != nil {
			out.File = *leaf.FilePath
		}
		if leaf.Line != nil {
			out.Line = *leaf.Line
		}
		for _, f := range info.Frames.Frames[:len(info.Frames.Frames)-1] {
			in := inlineFrame{}
			if f.Function != nil {
				in.Function = *f.Function
			}
			if f.FilePath != nil {
				in.File = *f.FilePath
			}
			if f.Line != nil {
				in.Line = *f.Line
			}
			out.Inlines = append(out.Inlines, in)
		}
	}
	return out
}

type sourceRequest struct {
	DebugName    string `json:"debug_name"`
	DebugID      string `json:"debug_id"`
	ModuleOffset string `json:"module_offset"`
	File         string `json:"file"`
}

// errNotFoundAtAddress signals the §8 scenario 6 authorization rule:
// a /source/v1 request must name a path this engine actually produced
// for that address.
var errNotFoundAtAddress = errors.New("api: requested path was not produced by symbolication of the given address")

// handleSource implements `/source/v1` (§6): given a module, a debug
// id, an address, and a file path, return whether that file path is
// one this engine would have named at that address (§8 scenario 6's
// authorization rule), erroring otherwise.
func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	id, err := debugid.ParseBreakpad(req.DebugID)
	if err != nil {
		writeSourceError(w, symbol.ErrInvalidPath, http.StatusBadRequest)
		return
	}
	sm, err := s.Manager.GetSymbolMap(r.Context(), req.DebugName, id, nil)
	if err != nil {
		writeSourceError(w, symbol.ErrNoDebugInfo, http.StatusNotFound)
		return
	}
	defer sm.Close()

	var offset uint64
	if _, err := fmt.Sscanf(req.ModuleOffset, "0x%x", &offset); err != nil {
		writeSourceError(w, symbol.ErrInvalidPath, http.StatusBadRequest)
		return
	}
	info, ok := sm.Lookup(uint32(offset))
	if !ok || info.Frames.Kind != symbol.FramesAvailable {
		writeSourceError(w, symbol.ErrNoDebugInfo, http.StatusNotFound)
		return
	}

	found := false
	for _, f := range info.Frames.Frames {
		if f.FilePath != nil && *f.FilePath == req.File {
			found = true
			break
		}
	}
	if !found {
		writeSourceError(w, errNotFoundAtAddress, http.StatusForbidden)
		return
	}

	if info.Frames.Kind == symbol.FramesExternal {
		writeSourceError(w, symbol.ErrNonLocalSymbols, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"file": req.File})
}

func writeSourceError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
