package goShield

import (
	"context"
	"sync"
)

type scopeContextKey struct{}
type clientHostContextKey struct{}

// Scope is the call-scoped binding of the current Subject and Identity. One
// Scope belongs to one logical request; it is created at the entry point
// with NewScope and cleared when the request ends.
type Scope struct {
	mu       sync.RWMutex
	subject  *Subject
	identity *Identity
}

// NewScope returns a child of ctx carrying a fresh, empty Scope.
func NewScope(ctx context.Context) (context.Context, *Scope) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Scope{}
	return context.WithValue(ctx, scopeContextKey{}, s), s
}

// ScopeFromContext returns the Scope carried by ctx, or nil.
func ScopeFromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeContextKey{}).(*Scope)
	return s
}

// Bind makes subject current. The subject's identity, if any, becomes the
// current identity too.
func (s *Scope) Bind(subject *Subject) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
	if subject != nil {
		if id := subject.identity(); id != nil {
			s.identity = id
		}
	}
}

// BindIdentity makes id current without touching the bound Subject.
func (s *Scope) BindIdentity(id *Identity) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

func (s *Scope) Subject() *Subject {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

func (s *Scope) Identity() *Identity {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Clear drops both bindings.
func (s *Scope) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = nil
	s.identity = nil
}

// SubjectFromContext returns the Subject bound in ctx's Scope.
func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	subject := ScopeFromContext(ctx).Subject()
	return subject, subject != nil
}

// IdentityFromContext returns the Identity bound in ctx's Scope.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id := ScopeFromContext(ctx).Identity()
	return id, id != nil
}

// WithClientHost attaches the caller's host address to ctx. It is recorded
// on events and used as the session host when the token carries none.
func WithClientHost(ctx context.Context, host string) context.Context {
	return context.WithValue(ctx, clientHostContextKey{}, host)
}

func clientHostFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	host, _ := ctx.Value(clientHostContextKey{}).(string)
	return host
}
