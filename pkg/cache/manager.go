// Package cache implements cyroid's image/ISO cache subsystem: a
// mutex-guarded registry of in-flight container image pulls and file
// downloads, archive extraction with a largest-ISO-wins policy, and the
// on-disk layout consumed by pkg/synth when resolving a template's boot
// media.
package cache

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/log"
	"github.com/cyroid/cyroid/pkg/runtime"
)

// State is the lifecycle state of a cache entry.
type State string

const (
	StatePulling     State = "pulling"
	StateDownloading State = "downloading"
	StateExtracting  State = "extracting"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// evictAfter is how long a completed or failed entry stays visible to
// Status before it's removed from the registry; short enough that a
// poller doesn't accumulate stale entries forever, long enough that the
// caller that triggered the operation can observe its own completion.
const evictAfter = 3 * time.Second

// Entry tracks one in-flight or recently-finished pull/download.
type Entry struct {
	Key        string
	Kind       string // "pull" or "download"
	State      State
	BytesDone  int64
	BytesTotal int64
	Err        error
	FinalPath  string
	startedAt  time.Time

	mu        sync.Mutex
	cancelled bool
	cancelCh  chan struct{}
}

func newEntry(key, kind string) *Entry {
	return &Entry{
		Key:      key,
		Kind:     kind,
		State:    StateDownloading,
		cancelCh: make(chan struct{}),
		startedAt: time.Now(),
	}
}

func (e *Entry) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

func (e *Entry) cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cancelled {
		e.cancelled = true
		close(e.cancelCh)
	}
}

// Status is the externally-visible snapshot of an Entry, per the
// status(key) contract.
type Status struct {
	State      State
	BytesDone  int64
	BytesTotal int64
	Percent    float64
	Error      string
}

func (e *Entry) status() Status {
	s := Status{State: e.State, BytesDone: e.BytesDone, BytesTotal: e.BytesTotal}
	if e.Err != nil {
		s.Error = e.Err.Error()
	}
	if e.BytesTotal > 0 {
		pct := float64(e.BytesDone) / float64(e.BytesTotal) * 100
		if e.State != StateCompleted && pct > 99 {
			pct = 99
		}
		s.Percent = pct
	} else if e.State == StateCompleted {
		s.Percent = 100
	}
	return s
}

// Manager is the single in-process registry of cache operations. All
// installations share one Manager; there is no per-range isolation
// since images and ISOs are shared resources.
type Manager struct {
	root       string // iso_cache_dir
	httpClient *http.Client

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewManager creates a cache manager rooted at isoCacheDir, creating the
// windows-isos/, linux-isos/ and custom-isos/ subdirectories it writes
// into.
func NewManager(isoCacheDir string) (*Manager, error) {
	for _, sub := range []string{"windows-isos", "linux-isos", "custom-isos"} {
		if err := os.MkdirAll(filepath.Join(isoCacheDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create cache subdirectory %s: %w", sub, err)
		}
	}
	return &Manager{
		root:       isoCacheDir,
		httpClient: &http.Client{Timeout: time.Hour},
		entries:    make(map[string]*Entry),
	}, nil
}

func (m *Manager) register(key, kind string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[key]; ok && existing.State != StateCompleted && existing.State != StateFailed && existing.State != StateCancelled {
		return nil, cyerr.Conflict("cache operation for key %q is already in flight", key)
	}

	entry := newEntry(key, kind)
	m.entries[key] = entry
	return entry, nil
}

func (m *Manager) finish(entry *Entry, state State, err error) {
	m.mu.Lock()
	entry.State = state
	entry.Err = err
	m.mu.Unlock()

	time.AfterFunc(evictAfter, func() {
		m.mu.Lock()
		if m.entries[entry.Key] == entry {
			delete(m.entries, entry.Key)
		}
		m.mu.Unlock()
	})
}

// StartPull begins a container image pull through rt, returning the key
// callers poll via Status. Rejects with Conflict if the image is already
// present in the image store or already being pulled.
func (m *Manager) StartPull(ctx context.Context, rt runtime.Adapter, image string) (string, error) {
	exists, err := rt.ImageExists(ctx, image)
	if err != nil {
		return "", fmt.Errorf("check image store for %s: %w", image, err)
	}
	if exists {
		return "", cyerr.Conflict("image %q is already present", image)
	}

	entry, err := m.register(image, "pull")
	if err != nil {
		return "", err
	}
	entry.State = StatePulling

	progress, err := rt.PullStream(ctx, image)
	if err != nil {
		m.finish(entry, StateFailed, err)
		return "", fmt.Errorf("start pull of %s: %w", image, err)
	}

	go func() {
		var lastErr error
		for p := range progress {
			if p.Err != nil {
				lastErr = p.Err
				continue
			}
			m.mu.Lock()
			entry.BytesDone = p.BytesCurrent
			if p.BytesTotal > 0 {
				entry.BytesTotal = p.BytesTotal
			}
			m.mu.Unlock()
			if p.Status == runtime.PullStatusComplete || p.Status == runtime.PullStatusAlreadyExists {
				entry.FinalPath = image
			}
		}
		if lastErr != nil {
			m.finish(entry, StateFailed, lastErr)
			return
		}
		m.finish(entry, StateCompleted, nil)
	}()

	return image, nil
}

// ListActive returns keys for every entry not yet completed/failed/cancelled.
func (m *Manager) ListActive() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if e.State != StateCompleted && e.State != StateFailed && e.State != StateCancelled {
			keys = append(keys, k)
		}
	}
	return keys
}

// Status returns the current status of a key, or ok=false if unknown
// (never started, or already evicted).
func (m *Manager) Status(key string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return Status{}, false
	}
	return entry.status(), true
}

// Cancel requests cancellation of an in-flight operation. Already
// finished operations are left as-is.
func (m *Manager) Cancel(key string) error {
	m.mu.Lock()
	entry, ok := m.entries[key]
	m.mu.Unlock()

	if !ok {
		return cyerr.NotFound("no cache operation for key %q", key)
	}
	entry.cancel()
	return nil
}

// Delete removes a cached file by its final path (or by key, for an
// in-flight entry — which also cancels it).
func (m *Manager) Delete(keyOrPath string) error {
	m.mu.Lock()
	entry, ok := m.entries[keyOrPath]
	m.mu.Unlock()

	if ok {
		entry.cancel()
		return nil
	}

	if err := os.Remove(keyOrPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete cached file %s: %w", keyOrPath, err)
	}
	log.Logger.Info().Str("path", keyOrPath).Msg("cache entry deleted")
	return nil
}

// journalArchiveWarning records a non-fatal archive-extraction anomaly
// (e.g. an archive shipping more than one ISO) against the structured
// logger. The cache is process-wide and shared across every range, so
// there is no single rangeID to attribute the warning to in the
// per-range event journal; pkg/log is the shared mechanism instead.
func (m *Manager) journalArchiveWarning(message string) {
	log.Logger.Warn().Msg(message)
}

func (m *Manager) windowsISOPath(version string) string {
	return filepath.Join(m.root, "windows-isos", fmt.Sprintf("windows-%s.iso", version))
}

func (m *Manager) linuxISOPath(distro string) string {
	return filepath.Join(m.root, "linux-isos", fmt.Sprintf("%s.iso", distro))
}

func (m *Manager) customISOPath(name string) string {
	return filepath.Join(m.root, "custom-isos", sanitizeFilename(name)+".iso")
}
