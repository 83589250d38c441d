package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DAO persists Session records. Implementations must be safe for concurrent
// use. Create and Delete must be atomic with respect to each other.
type DAO interface {
	// Create assigns an ID when s.ID is empty and stores a copy of s. It
	// fails with ErrIllegalState if no ID could be assigned and with
	// ErrSessionIDCollision if the ID is already taken.
	Create(ctx context.Context, s *Session) error
	// ReadSession returns a copy of the stored record or ErrUnknownSession.
	ReadSession(ctx context.Context, id string) (*Session, error)
	// Update replaces the stored record when its revision still equals
	// s.Version, then advances s.Version. It fails with ErrConcurrentUpdate
	// on a revision mismatch and with ErrUnknownSession if the record no
	// longer exists.
	Update(ctx context.Context, s *Session) error
	// Delete removes the record after reconfirming it exists.
	Delete(ctx context.Context, s *Session) error
	// ActiveSessions returns every stored record with no stop timestamp.
	ActiveSessions(ctx context.Context) ([]*Session, error)
}

// ActiveCounter is implemented by stores that can count running sessions
// without reading them.
type ActiveCounter interface {
	ActiveCount(ctx context.Context) (int, error)
}

// IDGenerator produces session identifiers. An empty result means the
// generator failed.
type IDGenerator func() string

// UUIDGenerator returns random (version 4) UUID strings, 122 bits of entropy.
func UUIDGenerator() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	return id.String()
}

// MemoryDAO keeps sessions in a map guarded by a single RWMutex.
//
// ActiveSessions scans the whole map; fine for in-process session tables,
// but persistent backings should keep an active index (see RedisDAO).
type MemoryDAO struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newID    IDGenerator
}

// NewMemoryDAO returns an empty store. A nil generator defaults to UUIDGenerator.
func NewMemoryDAO(gen IDGenerator) *MemoryDAO {
	if gen == nil {
		gen = UUIDGenerator
	}
	return &MemoryDAO{
		sessions: make(map[string]*Session),
		newID:    gen,
	}
}

func (d *MemoryDAO) Create(_ context.Context, s *Session) error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.ID == "" {
		s.ID = d.newID()
	}
	if s.ID == "" {
		return ErrIllegalState
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.sessions[s.ID]; exists {
		return ErrSessionIDCollision
	}
	d.sessions[s.ID] = s.Clone()
	return nil
}

func (d *MemoryDAO) ReadSession(_ context.Context, id string) (*Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil, unknownSession(id)
	}
	return s.Clone(), nil
}

func (d *MemoryDAO) Update(_ context.Context, s *Session) error {
	if s == nil {
		return ErrInvalidArgument
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.sessions[s.ID]
	if !ok {
		return unknownSession(s.ID)
	}
	if current.Version != s.Version {
		return fmt.Errorf("%w: %q at revision %d, stored %d", ErrConcurrentUpdate, s.ID, s.Version, current.Version)
	}
	s.Version++
	d.sessions[s.ID] = s.Clone()
	return nil
}

func (d *MemoryDAO) Delete(_ context.Context, s *Session) error {
	if s == nil {
		return ErrInvalidArgument
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[s.ID]; !ok {
		return unknownSession(s.ID)
	}
	delete(d.sessions, s.ID)
	return nil
}

func (d *MemoryDAO) ActiveSessions(_ context.Context) ([]*Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	active := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		if !s.IsStopped() {
			active = append(active, s.Clone())
		}
	}
	return active, nil
}

// Len returns the number of stored records, stopped or not.
func (d *MemoryDAO) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}
