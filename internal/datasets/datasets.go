package datasets

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinodismyname/mcpreports/config"
	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/loader"
)

// Handle is a loaded dataset paired with metadata for TTL eviction.
type Handle struct {
	ID        string
	Path      string
	Schema    string
	Sheet     string
	Data      *dataset.Dataset
	LoadedAt  time.Time
	ExpiresAt time.Time
	key       string
	mu        sync.RWMutex
}

// DatasetGate coordinates capacity for open datasets (backed by runtime.Controller).
type DatasetGate interface {
	AcquireDataset(ctx context.Context) error
	ReleaseDataset()
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// LoadFunc reads a file into a dataset; loader.Load in production.
type LoadFunc func(ctx context.Context, path string, o loader.Options) (*dataset.Dataset, error)

// Manager caches loaded datasets behind opaque handle IDs.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	byPath       map[string]string
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         DatasetGate
	validator    PathValidator
	load         LoadFunc
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// Option customizes a Manager.
type Option func(*Manager)

// WithValidator checks every opened path against v.
func WithValidator(v PathValidator) Option { return func(m *Manager) { m.validator = v } }

// WithLoadFunc replaces loader.Load.
func WithLoadFunc(fn LoadFunc) Option { return func(m *Manager) { m.load = fn } }

// NewManager constructs a manager with a TTL-bearing handle cache.
// Pass ttl or cleanupEvery <= 0 to use defaults from config.
// Gate can be nil for tests; clock defaults to time.Now when nil.
func NewManager(ttl, cleanupEvery time.Duration, gate DatasetGate, clock func() time.Time, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultDatasetIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultDatasetCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	m := &Manager{
		handles:      make(map[string]*Handle),
		byPath:       make(map[string]string),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		load:         loader.Load,
		stopCh:       make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ErrHandleNotFound indicates an unknown or expired handle ID.
var ErrHandleNotFound = errors.New("datasets: handle not found")

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all handles.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.handles {
		delete(m.handles, id)
		m.release()
	}
	clear(m.byPath)
	return nil
}

// Open validates and loads path, registers a handle and returns its ID.
// Capacity is enforced via the gate when provided.
func (m *Manager) Open(ctx context.Context, path string, o loader.Options, schemaName string) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	if !loader.Supported(path) {
		m.release()
		return "", &loader.LoadError{Path: path, Kind: loader.Unsupported, Err: fmt.Errorf("extension not in %s", strings.Join(loader.Extensions, ", "))}
	}
	if m.validator != nil {
		canonical, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			m.release()
			return "", err
		}
		path = canonical
	}

	ds, err := m.load(ctx, path, o)
	if err != nil {
		m.release()
		return "", err
	}
	return m.register(ds, path, schemaName, o), nil
}

// GetOrOpenByPath reuses a live handle for the same path, schema, sheet and
// aliases, or opens a new one. It returns the handle ID and canonical path.
func (m *Manager) GetOrOpenByPath(ctx context.Context, path string, o loader.Options, schemaName string) (string, string, error) {
	canonical := path
	if m.validator != nil {
		c, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			return "", "", err
		}
		canonical = c
	}
	m.mu.RLock()
	id, ok := m.byPath[handleKey(canonical, schemaName, o)]
	m.mu.RUnlock()
	if ok {
		if _, live := m.Get(id); live {
			return id, canonical, nil
		}
	}
	id, err := m.Open(ctx, canonical, o, schemaName)
	if err != nil {
		return "", "", err
	}
	return id, canonical, nil
}

// Adopt registers an already-built dataset. Intended for tests and the CLI.
func (m *Manager) Adopt(ctx context.Context, ds *dataset.Dataset, source string) (string, error) {
	if ds == nil {
		return "", fmt.Errorf("datasets: nil dataset")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	return m.register(ds, source, "", loader.Options{}), nil
}

func (m *Manager) register(ds *dataset.Dataset, path, schemaName string, o loader.Options) string {
	now := m.clock()
	h := &Handle{
		ID:        uuid.NewString(),
		Path:      path,
		Schema:    schemaName,
		Sheet:     o.Sheet,
		Data:      ds,
		LoadedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	m.mu.Lock()
	m.handles[h.ID] = h
	if path != "" {
		h.key = handleKey(path, schemaName, o)
		m.byPath[h.key] = h.ID
	}
	m.mu.Unlock()
	return h.ID
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.clock()
	h.mu.Lock()
	h.ExpiresAt = now.Add(m.ttl)
	h.mu.Unlock()
	return h, true
}

// WithDataset runs fn against the handle's dataset. Datasets are immutable,
// so concurrent callers share it without further locking.
func (m *Manager) WithDataset(id string, fn func(*dataset.Dataset) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	return fn(h.Data)
}

// CloseHandle removes a handle by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(_ context.Context, id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		m.drop(h)
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	m.release()
	return nil
}

// EvictExpired drops handles whose idle TTL has elapsed.
func (m *Manager) EvictExpired() {
	now := m.clock()
	m.mu.Lock()
	var n int
	for _, h := range m.handles {
		if h.Expired(now) {
			m.drop(h)
			n++
		}
	}
	m.mu.Unlock()
	for range n {
		m.release()
	}
}

// drop removes h from both indexes; callers hold m.mu.
func (m *Manager) drop(h *Handle) {
	delete(m.handles, h.ID)
	if h.key != "" && m.byPath[h.key] == h.ID {
		delete(m.byPath, h.key)
	}
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireDataset(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseDataset()
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return now.After(h.ExpiresAt)
}

// handleKey identifies what a handle was loaded from: two opens share a
// handle only when they would load the same table.
func handleKey(path, schema string, o loader.Options) string {
	var sb strings.Builder
	sb.WriteString(schema)
	sb.WriteByte(0)
	sb.WriteString(path)
	sb.WriteByte(0)
	sb.WriteString(o.Sheet)
	for _, k := range slices.Sorted(maps.Keys(o.Aliases)) {
		sb.WriteByte(0)
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(o.Aliases[k])
	}
	return sb.String()
}
