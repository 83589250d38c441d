package goShield

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/goShield/session"
)

// Subject is the per-caller view of the SecurityManager. It holds only the
// caller's principals, an optional session handle, and its own state flags;
// every question is forwarded to the SecurityManager.
//
// After Logout the Subject is permanently invalidated: every method that
// takes a context returns ErrInvalidSubject, and Logout itself is a no-op.
type Subject struct {
	manager *SecurityManager

	mu            sync.Mutex
	principals    PrincipalCollection
	ident         *Identity
	authenticated bool
	host          string
	session       *session.Handle
	invalidated   bool
}

type subjectState struct {
	principals PrincipalCollection
	session    *session.Handle
	host       string
}

func (s *Subject) state() (subjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		return subjectState{}, ErrInvalidSubject
	}
	return subjectState{principals: s.principals, session: s.session, host: s.host}, nil
}

// Principals returns the bound principals; empty when anonymous or invalidated.
func (s *Subject) Principals() PrincipalCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principals
}

// Principal returns the primary principal, or "".
func (s *Subject) Principal() string {
	return s.Principals().Primary()
}

func (s *Subject) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Subject) IsInvalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

func (s *Subject) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

func (s *Subject) identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated || s.principals.IsEmpty() {
		return nil
	}
	if s.ident == nil {
		s.ident = &Identity{principals: s.principals}
	}
	return s.ident
}

// Login authenticates token through the SecurityManager and adopts the
// resulting principals. An identity with no principals is a wiring defect
// and fails with ErrIllegalState. On success the Subject is bound to the
// Scope carried by ctx.
func (s *Subject) Login(ctx context.Context, token AuthenticationToken) error {
	st, err := s.state()
	if err != nil {
		return err
	}

	id, err := s.manager.Login(ctx, token)
	if err != nil {
		return err
	}
	if id == nil {
		return fmt.Errorf("%w: login produced no identity", ErrIllegalState)
	}
	principals := id.PrincipalCollection()
	if principals.IsEmpty() {
		return fmt.Errorf("%w: login produced an empty principal collection", ErrIllegalState)
	}

	s.mu.Lock()
	s.principals = principals
	s.ident = id
	s.authenticated = true
	if ht, ok := token.(HostAuthenticationToken); ok && ht.Host() != "" {
		s.host = ht.Host()
	}
	s.mu.Unlock()

	if st.session != nil {
		if err := st.session.SetAttribute(ctx, PrincipalsAttribute, principals.Slice()); err != nil {
			return err
		}
	}

	ScopeFromContext(ctx).Bind(s)
	return nil
}

// Session returns the bound session. When none is bound and create is
// true, a session is started; otherwise (nil, nil) is returned.
func (s *Subject) Session(ctx context.Context, create bool) (*session.Handle, error) {
	st, err := s.state()
	if err != nil {
		return nil, err
	}
	if st.session != nil || !create {
		return st.session, nil
	}

	h, err := s.manager.StartSession(ctx, st.host)
	if err != nil {
		return nil, err
	}
	if !st.principals.IsEmpty() {
		if err := h.SetAttribute(ctx, PrincipalsAttribute, st.principals.Slice()); err != nil {
			return nil, discardSession(ctx, h, err)
		}
	}

	s.mu.Lock()
	bound, invalidated := s.session, s.invalidated
	if !invalidated && bound == nil {
		s.session = h
	}
	s.mu.Unlock()

	switch {
	case invalidated:
		return nil, discardSession(ctx, h, ErrInvalidSubject)
	case bound != nil:
		// Another call bound a session first.
		if err := discardSession(ctx, h, nil); err != nil {
			s.manager.logger.Warn("discarding duplicate session failed", "session_id", h.ID(), "error", err)
		}
		return bound, nil
	}
	return h, nil
}

// discardSession stops a session that was started but never bound, and
// returns cause joined with any stop failure.
func discardSession(ctx context.Context, h *session.Handle, cause error) error {
	if err := h.Stop(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Logout stops the bound session (ignoring an already invalid one),
// notifies the SecurityManager, and invalidates the Subject. The Subject is
// invalidated even when a step fails; the failures are joined and returned.
func (s *Subject) Logout(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return nil
	}
	principals := s.principals
	h := s.session
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.invalidated = true
		s.authenticated = false
		s.principals = PrincipalCollection{}
		s.ident = nil
		s.session = nil
		s.mu.Unlock()

		if scope := ScopeFromContext(ctx); scope != nil && scope.Subject() == s {
			scope.Clear()
		}
	}()

	var errs []error
	if h != nil {
		if stopErr := h.Stop(ctx); stopErr != nil && !errors.Is(stopErr, session.ErrInvalidSession) {
			errs = append(errs, stopErr)
		}
	}
	if logoutErr := s.manager.Logout(ctx, principals); logoutErr != nil {
		errs = append(errs, logoutErr)
	}
	return errors.Join(errs...)
}

// Execute runs fn with this Subject bound in a fresh Scope, and clears the
// Scope when fn returns.
func (s *Subject) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, err := s.state(); err != nil {
		return err
	}
	scoped, scope := NewScope(ctx)
	scope.Bind(s)
	defer scope.Clear()
	return fn(scoped)
}

func (s *Subject) IsPermitted(ctx context.Context, perm string) (bool, error) {
	st, err := s.state()
	if err != nil || st.principals.IsEmpty() {
		return false, err
	}
	return s.manager.IsPermitted(ctx, st.principals, perm)
}

// IsPermittedEach returns one result per permission. Anonymous subjects get
// all false.
func (s *Subject) IsPermittedEach(ctx context.Context, perms ...string) ([]bool, error) {
	st, err := s.state()
	if err != nil {
		return nil, err
	}
	if st.principals.IsEmpty() {
		return make([]bool, len(perms)), nil
	}
	return s.manager.IsPermittedEach(ctx, st.principals, perms...)
}

func (s *Subject) IsPermittedAll(ctx context.Context, perms ...string) (bool, error) {
	st, err := s.state()
	if err != nil || st.principals.IsEmpty() {
		return false, err
	}
	return s.manager.IsPermittedAll(ctx, st.principals, perms...)
}

func (s *Subject) CheckPermission(ctx context.Context, perm string) error {
	st, err := s.authenticatedState()
	if err != nil {
		return err
	}
	return s.manager.CheckPermission(ctx, st.principals, perm)
}

func (s *Subject) CheckPermissions(ctx context.Context, perms ...string) error {
	st, err := s.authenticatedState()
	if err != nil {
		return err
	}
	return s.manager.CheckPermissions(ctx, st.principals, perms...)
}

func (s *Subject) HasRole(ctx context.Context, role string) (bool, error) {
	st, err := s.state()
	if err != nil || st.principals.IsEmpty() {
		return false, err
	}
	return s.manager.HasRole(ctx, st.principals, role)
}

// HasRoles returns one result per role. Anonymous subjects get all false.
func (s *Subject) HasRoles(ctx context.Context, roles ...string) ([]bool, error) {
	st, err := s.state()
	if err != nil {
		return nil, err
	}
	if st.principals.IsEmpty() {
		return make([]bool, len(roles)), nil
	}
	return s.manager.HasRoles(ctx, st.principals, roles...)
}

func (s *Subject) HasAllRoles(ctx context.Context, roles ...string) (bool, error) {
	st, err := s.state()
	if err != nil || st.principals.IsEmpty() {
		return false, err
	}
	return s.manager.HasAllRoles(ctx, st.principals, roles...)
}

func (s *Subject) CheckRole(ctx context.Context, role string) error {
	st, err := s.authenticatedState()
	if err != nil {
		return err
	}
	return s.manager.CheckRole(ctx, st.principals, role)
}

func (s *Subject) CheckRoles(ctx context.Context, roles ...string) error {
	st, err := s.authenticatedState()
	if err != nil {
		return err
	}
	return s.manager.CheckRoles(ctx, st.principals, roles...)
}

func (s *Subject) authenticatedState() (subjectState, error) {
	st, err := s.state()
	if err != nil {
		return st, err
	}
	if st.principals.IsEmpty() {
		return st, ErrUnauthenticated
	}
	return st, nil
}
