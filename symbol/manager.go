// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package symbol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/tracewell/profcore/debugid"
	"github.com/tracewell/profcore/internal/xlog"
	"github.com/tracewell/profcore/symbol/pathmapper"
)

// ManagerConfig configures a Manager, following the teacher's
// pe.Options convention: a plain struct of documented knobs with
// defaults filled in by the constructor (§2.3).
type ManagerConfig struct {
	// CandidateConfig feeds GenerateCandidates for every lookup.
	Candidates CandidateConfig

	// Locator opens the bytes behind a FileLocation. Defaults to
	// NewDefaultFileLocator(nil).
	Locator FileLocator

	// Mapper canonicalizes debug-info paths (§4.2.5). Defaults to a
	// Mapper with no extra rules.
	Mapper *pathmapper.Mapper

	// CacheDir, if set, is where downloaded candidates are written
	// before being reopened, so repeat lookups skip the network.
	CacheDir string

	// Observer receives lifecycle events for every lookup (§4 "Verbose
	// observer"). Defaults to a no-op.
	Observer Observer

	// Logger receives structured log lines (§2.1).
	Logger xlog.Logger

	// ToolVersion, when set, lets cache-invalidation notes compare the
	// version of the tool that wrote a cached entry against the
	// running binary's own version using semver ordering.
	ToolVersion string
}

// Observer receives lifecycle events during GetSymbolMap, mirroring
// original_source/wholesym/src/verbose_symbol_manager_observer.rs one
// method at a time (§4 "Verbose observer").
type Observer interface {
	OnNewDownloadBeforeConnect(url string)
	OnDownloadStarted(url string)
	OnDownloadProgress(url string, bytesSoFar, totalBytes uint64)
	OnDownloadCompleted(url string, bytesDownloaded uint64)
	OnDownloadFailed(url string, err error)
	OnDownloadCanceled(url string)
	OnFileCreated(path string, size uint64)
	OnFileUsed(path string)
}

// VerboseObserver implements Observer by logging every event through
// an xlog.Logger, the Go analogue of verbose_symbol_manager_observer.rs.
type VerboseObserver struct {
	Log *xlog.Helper
}

// NewVerboseObserver returns a VerboseObserver logging through logger.
func NewVerboseObserver(logger xlog.Logger) *VerboseObserver {
	return &VerboseObserver{Log: xlog.NewHelper(logger)}
}

func (v *VerboseObserver) OnNewDownloadBeforeConnect(url string) {
	v.Log.Infof("connecting before download: %s", url)
}
func (v *VerboseObserver) OnDownloadStarted(url string) { v.Log.Infof("download started: %s", url) }
func (v *VerboseObserver) OnDownloadProgress(url string, bytesSoFar, totalBytes uint64) {
	v.Log.Debugf("download progress: %s %d/%d", url, bytesSoFar, totalBytes)
}
func (v *VerboseObserver) OnDownloadCompleted(url string, bytesDownloaded uint64) {
	v.Log.Infof("download completed: %s (%d bytes)", url, bytesDownloaded)
}
func (v *VerboseObserver) OnDownloadFailed(url string, err error) {
	v.Log.Warnf("download failed: %s: %v", url, err)
}
func (v *VerboseObserver) OnDownloadCanceled(url string) {
	v.Log.Infof("download canceled: %s", url)
}
func (v *VerboseObserver) OnFileCreated(path string, size uint64) {
	v.Log.Debugf("cache file created: %s (%d bytes)", path, size)
}
func (v *VerboseObserver) OnFileUsed(path string) { v.Log.Debugf("cache file used: %s", path) }

type nopObserver struct{}

func (nopObserver) OnNewDownloadBeforeConnect(string)          {}
func (nopObserver) OnDownloadStarted(string)                   {}
func (nopObserver) OnDownloadProgress(string, uint64, uint64) {}
func (nopObserver) OnDownloadCompleted(string, uint64)         {}
func (nopObserver) OnDownloadFailed(string, error)              {}
func (nopObserver) OnDownloadCanceled(string)                   {}
func (nopObserver) OnFileCreated(string, uint64)                {}
func (nopObserver) OnFileUsed(string)                           {}

// DownloadErrorKind enumerates download_error.rs's taxonomy (§4.3.3,
// §4 "download_error.rs taxonomy richness").
type DownloadErrorKind int

const (
	DownloadErrClientCreationFailed DownloadErrorKind = iota
	DownloadErrOpenFailed
	DownloadErrTimeout
	DownloadErrStatusError
	DownloadErrCouldNotCreateDestinationDirectory
	DownloadErrUnexpectedContentEncoding
	DownloadErrStreamRead
	DownloadErrDiskWrite
	DownloadErrRedirect
	DownloadErrOther
)

// DownloadError is the structured error for a failed candidate fetch.
type DownloadError struct {
	Kind       DownloadErrorKind
	URL        string
	StatusCode int
	Cause      error
}

func (e *DownloadError) Error() string {
	switch e.Kind {
	case DownloadErrStatusError:
		return fmt.Sprintf("symbol: download %s: status %d", e.URL, e.StatusCode)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("symbol: download %s: %v", e.URL, e.Cause)
		}
		return fmt.Sprintf("symbol: download %s failed", e.URL)
	}
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// Manager resolves (debugName, id) pairs to an open SymbolMap by
// walking GenerateCandidates in priority order, downloading and
// caching remote candidates as needed (§4.3, §5 concurrency model).
type Manager struct {
	cfg ManagerConfig
	log *xlog.Helper

	mu      sync.Mutex
	inFlight map[string]*inflightLookup
}

type inflightLookup struct {
	wg     sync.WaitGroup
	result SymbolMap
	err    error
}

// NewManager constructs a Manager, filling in documented defaults for
// any zero-valued ManagerConfig field (§2.3).
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Locator == nil {
		cfg.Locator = NewDefaultFileLocator(nil)
	}
	if cfg.Mapper == nil {
		cfg.Mapper = pathmapper.New()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = xlog.Nop
	}
	return &Manager{cfg: cfg, log: xlog.NewHelper(cfg.Logger), inFlight: make(map[string]*inflightLookup)}
}

// GetSymbolMap resolves debugName/id to an open SymbolMap, trying
// GenerateCandidates in order and coalescing concurrent lookups for
// the same key (§5 "request coalescing").
func (m *Manager) GetSymbolMap(ctx context.Context, debugName string, id debugid.ID, codeID *debugid.CodeID) (SymbolMap, error) {
	key := debugName + "/" + id.Breakpad()

	m.mu.Lock()
	if fl, ok := m.inFlight[key]; ok {
		m.mu.Unlock()
		fl.wg.Wait()
		return fl.result, fl.err
	}
	fl := &inflightLookup{}
	fl.wg.Add(1)
	m.inFlight[key] = fl
	m.mu.Unlock()

	fl.result, fl.err = m.resolve(ctx, debugName, id, codeID)

	m.mu.Lock()
	delete(m.inFlight, key)
	m.mu.Unlock()
	fl.wg.Done()
	return fl.result, fl.err
}

func (m *Manager) resolve(ctx context.Context, debugName string, id debugid.ID, codeID *debugid.CodeID) (SymbolMap, error) {
	candidates := GenerateCandidates(debugName, id, codeID, m.cfg.Candidates)
	var lastErr error
	for _, cand := range candidates {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		default:
		}

		data, err := m.openCandidate(ctx, cand)
		if err != nil {
			lastErr = err
			m.log.Debugf("candidate %s failed: %v", cand, err)
			continue
		}
		want := id
		sm, err := NewSymbolMapFromBytes(data, &want, m.cfg.Mapper)
		if err != nil {
			lastErr = err
			m.log.Debugf("candidate %s did not parse/match: %v", cand, err)
			continue
		}
		m.cfg.Observer.OnFileUsed(cand.String())
		return sm, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: %s/%s: no candidate produced a match", ErrUnmatchedDebugID, debugName, id.Breakpad())
	}
	return nil, lastErr
}

func (m *Manager) openCandidate(ctx context.Context, loc FileLocation) ([]byte, error) {
	if loc.Kind != FileLocationURL {
		r, err := m.cfg.Locator.Open(loc)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		buf := make([]byte, r.Size())
		if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
			return nil, err
		}
		return buf, nil
	}
	return m.download(ctx, loc)
}

// download fetches a URL candidate, optionally caching it to
// m.cfg.CacheDir via a temp-file-then-rename so a crash mid-write never
// leaves a corrupt cache entry visible to the next lookup (§5).
func (m *Manager) download(ctx context.Context, loc FileLocation) ([]byte, error) {
	url := loc.URLBase + "/" + loc.URLKey
	m.cfg.Observer.OnNewDownloadBeforeConnect(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{Kind: DownloadErrClientCreationFailed, URL: url, Cause: err}
	}
	m.cfg.Observer.OnDownloadStarted(url)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		m.cfg.Observer.OnDownloadFailed(url, err)
		return nil, &DownloadError{Kind: DownloadErrOpenFailed, URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		err := &DownloadError{Kind: DownloadErrRedirect, URL: url, StatusCode: resp.StatusCode}
		m.cfg.Observer.OnDownloadFailed(url, err)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := &DownloadError{Kind: DownloadErrStatusError, URL: url, StatusCode: resp.StatusCode}
		m.cfg.Observer.OnDownloadFailed(url, err)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		derr := &DownloadError{Kind: DownloadErrStreamRead, URL: url, Cause: err}
		m.cfg.Observer.OnDownloadFailed(url, derr)
		return nil, derr
	}
	m.cfg.Observer.OnDownloadCompleted(url, uint64(len(data)))

	if m.cfg.CacheDir != "" {
		if err := m.writeCacheFile(loc.URLKey, data); err != nil {
			m.log.Warnf("could not cache %s: %v", url, err)
		}
	}
	return data, nil
}

func (m *Manager) writeCacheFile(key string, data []byte) error {
	dest := filepath.Join(m.cfg.CacheDir, filepath.FromSlash(key))
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &DownloadError{Kind: DownloadErrCouldNotCreateDestinationDirectory, Cause: err}
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &DownloadError{Kind: DownloadErrDiskWrite, Cause: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &DownloadError{Kind: DownloadErrDiskWrite, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &DownloadError{Kind: DownloadErrDiskWrite, Cause: err}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return &DownloadError{Kind: DownloadErrDiskWrite, Cause: err}
	}
	m.cfg.Observer.OnFileCreated(dest, uint64(len(data)))
	return nil
}

// newerToolVersion reports whether candidate is newer than m's
// configured ToolVersion under semver ordering, used to annotate cache
// entries written by an older build (minor cache-invalidation note per
// §3 domain stack table).
func (m *Manager) newerToolVersion(candidate string) bool {
	if m.cfg.ToolVersion == "" || !validSemver(candidate) || !validSemver(m.cfg.ToolVersion) {
		return false
	}
	c, v := candidate, m.cfg.ToolVersion
	if !semver.IsValid(c) {
		c = "v" + c
	}
	if !semver.IsValid(v) {
		v = "v" + v
	}
	return semver.Compare(c, v) > 0
}

func validSemver(v string) bool { return semver.IsValid(v) || semver.IsValid("v"+v) }

// ErrCanceled is returned by a lookup whose context was canceled mid
// candidate walk, distinct from ctx.Err() for callers matching on it
// directly.
var ErrCanceled = errors.New("symbol: lookup canceled")
