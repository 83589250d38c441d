package session

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultTimeout is the idle timeout applied when a Manager is built with a
// zero timeout.
const DefaultTimeout = 30 * time.Minute

const (
	lockStripes = 256
	// maxUpdateAttempts bounds retries when another process wins the
	// revision race on a shared store.
	maxUpdateAttempts = 8
)

// stripedLock serializes writers per session ID inside one process.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Listener receives session lifecycle notifications. Callbacks run
// synchronously on the caller's goroutine and receive a snapshot.
type Listener interface {
	OnStart(ctx context.Context, s *Session)
	OnStop(ctx context.Context, s *Session)
	OnExpiration(ctx context.Context, s *Session)
}

// ManagerConfig controls Manager construction.
type ManagerConfig struct {
	// DefaultTimeout is applied to new sessions. Negative disables idle
	// expiration; zero selects DefaultTimeout.
	DefaultTimeout time.Duration
	Clock          func() time.Time
	Logger         *slog.Logger
	Listeners      []Listener
}

// Manager drives the session state machine on top of a [DAO].
//
// Expiration is evaluated from stored timestamps on every access; nothing is
// expired proactively except by a [Reaper]. Attribute reads and writes
// validate the session but never move LastAccessTime; only Touch does.
//
// Writes to one session are serialized per ID in process and applied with
// revision checks, so concurrent Touch and attribute calls never lose each
// other's changes, even across processes sharing a store.
type Manager struct {
	dao       DAO
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
	listeners []Listener
	locks     stripedLock
}

// NewManager returns a Manager over dao.
func NewManager(dao DAO, cfg ManagerConfig) (*Manager, error) {
	if dao == nil {
		return nil, fmt.Errorf("%w: session DAO required", ErrIllegalState)
	}

	timeout := cfg.DefaultTimeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		dao:       dao,
		timeout:   timeout,
		now:       clock,
		logger:    logger,
		listeners: append([]Listener(nil), cfg.Listeners...),
	}, nil
}

// DAO returns the backing store.
func (m *Manager) DAO() DAO {
	return m.dao
}

// DefaultTimeout returns the timeout applied to new sessions.
func (m *Manager) DefaultTimeout() time.Duration {
	return m.timeout
}

// Start creates and persists a new session for host.
func (m *Manager) Start(ctx context.Context, host string) (*Handle, error) {
	now := m.now()
	s := &Session{
		StartTimestamp: now,
		LastAccessTime: now,
		Timeout:        m.timeout,
		Host:           host,
	}

	if err := m.dao.Create(ctx, s); err != nil {
		return nil, err
	}

	m.logger.Debug("session started", "session_id", s.ID, "host", host)
	for _, l := range m.listeners {
		l.OnStart(ctx, s.Clone())
	}

	return &Handle{id: s.ID, manager: m}, nil
}

// Session returns a validated snapshot of the session.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	return m.lookup(ctx, id)
}

// Handle returns a delegating reference for an existing, valid session.
func (m *Manager) Handle(ctx context.Context, id string) (*Handle, error) {
	if _, err := m.lookup(ctx, id); err != nil {
		return nil, err
	}
	return &Handle{id: id, manager: m}, nil
}

// Touch marks the session as accessed now.
func (m *Manager) Touch(ctx context.Context, id string) error {
	return m.mutate(ctx, id, func(s *Session) bool {
		now := m.now()
		if !now.After(s.LastAccessTime) {
			return false
		}
		s.LastAccessTime = now
		return true
	})
}

// Stop terminates the session and removes it from the store. Stopping an
// already-removed session fails with ErrUnknownSession.
func (m *Manager) Stop(ctx context.Context, id string) error {
	var expired bool
	s, err := m.withLock(id, func() (*Session, error) {
		for attempt := 1; ; attempt++ {
			s, err := m.dao.ReadSession(ctx, id)
			if err != nil {
				return nil, err
			}
			if s.IsStopped() {
				return nil, stoppedSession(id)
			}

			expired = s.IsExpired(m.now())
			err = m.persistTerminal(ctx, s, expired)
			if errors.Is(err, ErrConcurrentUpdate) && attempt < maxUpdateAttempts {
				continue
			}
			return s, err
		}
	})
	if err != nil {
		return err
	}

	m.notifyTerminal(ctx, s, expired)
	if expired {
		return expiredSession(id)
	}
	return nil
}

// expire reclaims id if it is still running and expired at the time of the
// locked re-read. It reports whether this call reclaimed it.
func (m *Manager) expire(ctx context.Context, id string) (bool, error) {
	s, err := m.withLock(id, func() (*Session, error) {
		for attempt := 1; ; attempt++ {
			s, err := m.dao.ReadSession(ctx, id)
			if err != nil {
				return nil, err
			}
			if s.IsStopped() || !s.IsExpired(m.now()) {
				return nil, nil
			}

			err = m.persistTerminal(ctx, s, true)
			if errors.Is(err, ErrConcurrentUpdate) && attempt < maxUpdateAttempts {
				continue
			}
			return s, err
		}
	})
	if err != nil || s == nil {
		return false, err
	}

	m.notifyTerminal(ctx, s, true)
	return true, nil
}

// Attribute returns the value stored under key, or nil.
func (m *Manager) Attribute(ctx context.Context, id, key string) (any, error) {
	s, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Attributes[key], nil
}

// AttributeKeys returns the attribute keys in sorted order.
func (m *Manager) AttributeKeys(ctx context.Context, id string) ([]string, error) {
	s, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// SetAttribute stores value under key. A nil value removes the key.
func (m *Manager) SetAttribute(ctx context.Context, id, key string, value any) error {
	if value == nil {
		_, err := m.RemoveAttribute(ctx, id, key)
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: attribute key cannot be empty", ErrInvalidArgument)
	}

	return m.mutate(ctx, id, func(s *Session) bool {
		if s.Attributes == nil {
			s.Attributes = make(map[string]any)
		}
		s.Attributes[key] = value
		return true
	})
}

// RemoveAttribute deletes key and returns its previous value.
func (m *Manager) RemoveAttribute(ctx context.Context, id, key string) (any, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: attribute key cannot be empty", ErrInvalidArgument)
	}

	var prev any
	err := m.mutate(ctx, id, func(s *Session) bool {
		var ok bool
		prev, ok = s.Attributes[key]
		if !ok {
			return false
		}
		delete(s.Attributes, key)
		return true
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// ActiveSessions returns the DAO's running sessions, expired or not.
func (m *Manager) ActiveSessions(ctx context.Context) ([]*Session, error) {
	return m.dao.ActiveSessions(ctx)
}

// ActiveCount returns the number of running sessions. Stores implementing
// ActiveCounter answer directly; others are listed and counted.
func (m *Manager) ActiveCount(ctx context.Context) (int, error) {
	if c, ok := m.dao.(ActiveCounter); ok {
		return c.ActiveCount(ctx)
	}
	active, err := m.dao.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

func (m *Manager) lookup(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, unknownSession(id)
	}

	s, err := m.dao.ReadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsStopped() {
		return nil, stoppedSession(id)
	}
	if s.IsExpired(m.now()) {
		return nil, expiredSession(id)
	}
	return s, nil
}

// mutate re-reads and validates the session, applies fn, and stores the
// result under the ID's lock. fn returns false when nothing changed. A lost
// revision race re-runs fn on a fresh copy.
func (m *Manager) mutate(ctx context.Context, id string, fn func(s *Session) bool) error {
	_, err := m.withLock(id, func() (*Session, error) {
		for attempt := 1; ; attempt++ {
			s, err := m.lookup(ctx, id)
			if err != nil {
				return nil, err
			}
			if !fn(s) {
				return s, nil
			}

			err = m.dao.Update(ctx, s)
			if errors.Is(err, ErrConcurrentUpdate) && attempt < maxUpdateAttempts {
				m.logger.Debug("session update retried", "session_id", id, "attempt", attempt)
				continue
			}
			return s, err
		}
	})
	return err
}

func (m *Manager) withLock(id string, fn func() (*Session, error)) (*Session, error) {
	if id == "" {
		return nil, unknownSession(id)
	}
	unlock := m.locks.lock(id)
	defer unlock()
	return fn()
}

// persistTerminal stamps s as stopped (and expired when asked), persists the
// terminal record, and deletes it.
func (m *Manager) persistTerminal(ctx context.Context, s *Session, expired bool) error {
	s.StopTimestamp = m.now()
	if expired {
		s.Expired = true
	}

	if err := m.dao.Update(ctx, s); err != nil {
		return err
	}
	if err := m.dao.Delete(ctx, s); err != nil && !errors.Is(err, ErrUnknownSession) {
		return err
	}
	return nil
}

// notifyTerminal runs listeners outside the ID lock so they may call back
// into the Manager.
func (m *Manager) notifyTerminal(ctx context.Context, s *Session, expired bool) {
	if expired {
		m.logger.Debug("session expired", "session_id", s.ID)
		for _, l := range m.listeners {
			l.OnExpiration(ctx, s.Clone())
		}
		return
	}

	m.logger.Debug("session stopped", "session_id", s.ID)
	for _, l := range m.listeners {
		l.OnStop(ctx, s.Clone())
	}
}
