package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/bus"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/observability"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// persistBuffer is the notification backlog of one session's persister.
const persistBuffer = 256

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type live struct {
	debugger *rewind.Debugger
	done     chan struct{}
}

// Manager owns the debuggers of a process, keyed by session ID.
// It serializes record access per session with reference-counted locks and keeps the
// latest record of every session in a StateStore.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active locks

	sessionsMu sync.RWMutex
	sessions   map[string]*live

	locker   ports.DistributedLocker
	lockTTL  time.Duration
	logger   *slog.Logger
	registry *registry.Registry
	metrics  *observability.Metrics
	opts     []rewind.Option
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and its debuggers.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRegistry shares a registry between the debuggers of the Manager.
func WithRegistry(r *registry.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithMetrics records every session in metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithDebuggerOptions applies opts to every debugger the Manager creates.
func WithDebuggerOptions(opts ...rewind.Option) Option {
	return func(m *Manager) {
		m.opts = append(m.opts, opts...)
	}
}

// NewManager creates a new session Manager with the given persistence store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*live),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = registry.NewRegistry()
	}
	return m
}

// Registry returns the registry shared by the Manager's debuggers.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Create starts a debugging session for program and persists its first record.
func (m *Manager) Create(ctx context.Context, program ports.Program, opts ...rewind.Option) (*rewind.Debugger, error) {
	id := m.registry.NewSessionID()
	all := []rewind.Option{
		rewind.WithID(id),
		rewind.WithRegistry(m.registry),
		rewind.WithLogger(m.logger),
	}
	if m.metrics != nil {
		all = append(all, rewind.WithLifecycleHooks(m.metrics.Hooks()))
	}
	all = append(all, m.opts...)
	all = append(all, opts...)

	dbg := rewind.New(program, all...)
	if err := m.Save(ctx, id, domain.NewSessionRecord(id, program.Name())); err != nil {
		dbg.Stop(ctx)
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	l := &live{debugger: dbg, done: make(chan struct{})}
	m.sessionsMu.Lock()
	m.sessions[id] = l
	m.sessionsMu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
		dbg.Subscribe(m.metrics)
	}
	m.persist(l, program.Name())

	m.logger.Info("Session created", "session_id", id, "program", program.Name())
	return dbg, nil
}

// persist keeps the stored record of l in step with its notifications until the
// debugger ends.
func (m *Manager) persist(l *live, program string) {
	dbg := l.debugger
	ch := bus.NewChannel(persistBuffer, m.logger)
	unsubscribe := dbg.Subscribe(ch)

	go func() {
		<-dbg.Done()
		unsubscribe()
		ch.Close()
	}()

	go func() {
		defer close(l.done)
		defer func() {
			if m.metrics != nil {
				m.metrics.ActiveSessions.Dec()
			}
		}()

		record := domain.NewSessionRecord(dbg.ID(), program)
		for n := range ch.C {
			switch n.Type {
			case domain.NotificationStatus:
				record.Status = n.Status
			case domain.NotificationState:
				record.State = n.State
			default:
				continue
			}
			record.UpdatedAt = n.Timestamp
			if err := m.Save(context.Background(), dbg.ID(), record); err != nil {
				m.logger.Warn("Failed to persist session record", "session_id", dbg.ID(), "err", err)
			}
		}
	}()
}

// Get returns the live debugger of sessionID.
func (m *Manager) Get(sessionID string) (*rewind.Debugger, error) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	l, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return l.debugger, nil
}

// Live returns the IDs of sessions owned by this process, sorted.
func (m *Manager) Live() []string {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load retrieves the stored record of a session.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	var record *domain.SessionRecord
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		record, err = m.store.Load(ctx, sessionID)
		return err
	})
	return record, err
}

// Save persists a session record.
func (m *Manager) Save(ctx context.Context, sessionID string, record *domain.SessionRecord) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, record)
	})
}

// Delete removes the stored record of a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// Remove stops the session if it is live here and deletes its record.
func (m *Manager) Remove(ctx context.Context, sessionID string) error {
	m.sessionsMu.Lock()
	l, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.sessionsMu.Unlock()

	if ok {
		m.stop(ctx, l)
	} else if _, err := m.Load(ctx, sessionID); err != nil {
		return err
	}
	return m.Delete(ctx, sessionID)
}

// stop ends a live debugger and waits for its last record to be written.
func (m *Manager) stop(ctx context.Context, l *live) {
	l.debugger.Stop(ctx)
	select {
	case <-l.done:
	case <-ctx.Done():
	}
}

// List returns the IDs of every stored session.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// Close stops every live session.
func (m *Manager) Close(ctx context.Context) {
	m.sessionsMu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*live)
	m.sessionsMu.Unlock()

	for _, l := range sessions {
		m.stop(ctx, l)
	}
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
