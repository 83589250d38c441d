package session

import (
	"maps"
	"time"
)

// Session is one continuous interaction window for one identity.
//
// A Session value is a record: DAOs store copies and hand out copies, so a
// caller mutating a returned Session never affects the stored state until it
// is passed back through [DAO.Update].
type Session struct {
	ID             string
	StartTimestamp time.Time
	LastAccessTime time.Time
	// StopTimestamp is zero while the session is running. Once set the
	// session is terminal.
	StopTimestamp time.Time
	// Timeout <= 0 disables idle expiration.
	Timeout    time.Duration
	Host       string
	Attributes map[string]any
	Expired    bool
	// Version is the store revision the record was read at. DAO.Update
	// accepts the record only at the current revision and then bumps it.
	Version uint64
}

// IsStopped reports whether the session has a stop timestamp.
func (s *Session) IsStopped() bool {
	return s != nil && !s.StopTimestamp.IsZero()
}

// IsExpired reports whether the session is expired at now: either it was
// explicitly marked expired, or it is still running and has been idle longer
// than its timeout.
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Expired {
		return true
	}
	if s.IsStopped() || s.Timeout <= 0 {
		return false
	}
	return now.Sub(s.LastAccessTime) > s.Timeout
}

// IsValid reports whether the session can still be used at now.
func (s *Session) IsValid(now time.Time) bool {
	return s != nil && !s.IsStopped() && !s.IsExpired(now)
}

// Clone returns a copy with its own attribute map. Attribute values are
// copied shallowly.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Attributes != nil {
		out.Attributes = maps.Clone(s.Attributes)
	}
	return &out
}
