package goShield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goShield/internal/events"
	"github.com/MrEthical07/goShield/session"
)

// PrincipalsAttribute is the session attribute under which a logged-in
// Subject's principals are stored, so the Subject can be resumed from the
// session ID alone.
const PrincipalsAttribute = "goshield.principals"

// SecurityManager composes the Authenticator, the Authorizer, the session
// manager, and the realms. It is built once by Builder.Build, shared by
// every request, and closed once at shutdown.
type SecurityManager struct {
	config        Config
	authenticator *Authenticator
	authorizer    Authorizer
	sessions      *session.Manager
	realms        []Realm
	events        *events.Dispatcher
	metrics       *Metrics
	logger        *slog.Logger
	reaper        *session.Reaper
	now           func() time.Time

	closeOnce sync.Once
}

// Config returns a copy of the active configuration.
func (sm *SecurityManager) Config() Config {
	return cloneConfig(sm.config)
}

func (sm *SecurityManager) Authenticator() *Authenticator { return sm.authenticator }

func (sm *SecurityManager) Authorizer() Authorizer { return sm.authorizer }

func (sm *SecurityManager) Sessions() *session.Manager { return sm.sessions }

func (sm *SecurityManager) Metrics() *Metrics { return sm.metrics }

func (sm *SecurityManager) Logger() *slog.Logger { return sm.logger }

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (sm *SecurityManager) MetricsSnapshot() MetricsSnapshot {
	return sm.metrics.Snapshot()
}

// EventsDropped reports events discarded under dispatcher backpressure.
func (sm *SecurityManager) EventsDropped() uint64 {
	return sm.events.Dropped()
}

// AuthorizationMode returns the configured decision mode.
func (sm *SecurityManager) AuthorizationMode() string {
	return sm.config.Authorization.Mode
}

// ActiveSessionCount reports the running sessions in the session store.
func (sm *SecurityManager) ActiveSessionCount(ctx context.Context) (int, error) {
	return sm.sessions.ActiveCount(ctx)
}

// Realms returns the configured realms in consultation order.
func (sm *SecurityManager) Realms() []Realm {
	return append([]Realm(nil), sm.realms...)
}

// Login authenticates token.
func (sm *SecurityManager) Login(ctx context.Context, token AuthenticationToken) (*Identity, error) {
	return sm.authenticator.Authenticate(ctx, token)
}

// Logout notifies LogoutAware realms and records the logout. Realm errors
// are joined; every realm is notified regardless.
func (sm *SecurityManager) Logout(ctx context.Context, principals PrincipalCollection) error {
	if principals.IsEmpty() {
		return nil
	}

	var errs []error
	for _, r := range sm.realms {
		la, ok := r.(LogoutAware)
		if !ok {
			continue
		}
		if err := la.OnLogout(ctx, principals); err != nil {
			errs = append(errs, fmt.Errorf("realm %q: %w", r.Name(), err))
		}
	}

	sm.metrics.Inc(MetricLogout)
	sm.logger.Debug("logout", "principal", principals.Primary())
	sm.emit(ctx, Event{
		Type:      EventLogout,
		Principal: principals.Primary(),
		Host:      clientHostFromContext(ctx),
		Success:   len(errs) == 0,
	})

	return errors.Join(errs...)
}

// StartSession starts a session for host.
func (sm *SecurityManager) StartSession(ctx context.Context, host string) (*session.Handle, error) {
	if host == "" {
		host = clientHostFromContext(ctx)
	}
	return sm.sessions.Start(ctx, host)
}

// Session returns a handle to an existing valid session.
func (sm *SecurityManager) Session(ctx context.Context, id string) (*session.Handle, error) {
	return sm.sessions.Handle(ctx, id)
}

// NewSubject returns an anonymous Subject for a caller at host.
func (sm *SecurityManager) NewSubject(host string) *Subject {
	return &Subject{manager: sm, host: host}
}

// ResumeSubject rebuilds the Subject that owns session id. A session
// without stored principals yields an anonymous Subject bound to it.
func (sm *SecurityManager) ResumeSubject(ctx context.Context, id string) (*Subject, error) {
	h, err := sm.sessions.Handle(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := h.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	s := &Subject{manager: sm, host: snap.Host, session: h}
	if principals := decodePrincipals(snap.Attributes[PrincipalsAttribute]); !principals.IsEmpty() {
		s.principals = principals
		s.authenticated = true
	}
	return s, nil
}

func (sm *SecurityManager) IsPermitted(ctx context.Context, principals PrincipalCollection, perm string) (bool, error) {
	return sm.authorizer.IsPermitted(ctx, principals, perm)
}

func (sm *SecurityManager) IsPermittedEach(ctx context.Context, principals PrincipalCollection, perms ...string) ([]bool, error) {
	return sm.authorizer.IsPermittedEach(ctx, principals, perms...)
}

func (sm *SecurityManager) IsPermittedAll(ctx context.Context, principals PrincipalCollection, perms ...string) (bool, error) {
	return sm.authorizer.IsPermittedAll(ctx, principals, perms...)
}

func (sm *SecurityManager) CheckPermission(ctx context.Context, principals PrincipalCollection, perm string) error {
	return sm.authorizer.CheckPermission(ctx, principals, perm)
}

func (sm *SecurityManager) CheckPermissions(ctx context.Context, principals PrincipalCollection, perms ...string) error {
	return sm.authorizer.CheckPermissions(ctx, principals, perms...)
}

func (sm *SecurityManager) HasRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error) {
	return sm.authorizer.HasRole(ctx, principals, role)
}

func (sm *SecurityManager) HasRoles(ctx context.Context, principals PrincipalCollection, roles ...string) ([]bool, error) {
	return sm.authorizer.HasRoles(ctx, principals, roles...)
}

func (sm *SecurityManager) HasAllRoles(ctx context.Context, principals PrincipalCollection, roles ...string) (bool, error) {
	return sm.authorizer.HasAllRoles(ctx, principals, roles...)
}

func (sm *SecurityManager) CheckRole(ctx context.Context, principals PrincipalCollection, role string) error {
	return sm.authorizer.CheckRole(ctx, principals, role)
}

func (sm *SecurityManager) CheckRoles(ctx context.Context, principals PrincipalCollection, roles ...string) error {
	return sm.authorizer.CheckRoles(ctx, principals, roles...)
}

// Start launches background work: the session reaper when enabled.
func (sm *SecurityManager) Start(ctx context.Context) {
	if sm.reaper != nil {
		sm.reaper.Start(ctx)
	}
}

// Reaper returns the session reaper, or nil when disabled.
func (sm *SecurityManager) Reaper() *session.Reaper {
	return sm.reaper
}

// Close stops the reaper and drains pending events.
func (sm *SecurityManager) Close() {
	if sm == nil {
		return
	}
	sm.closeOnce.Do(func() {
		sm.reaper.Close()
		sm.events.Close()
	})
}

func (sm *SecurityManager) emit(ctx context.Context, event Event) {
	if sm.events == nil {
		return
	}
	event.Timestamp = sm.now()
	sm.events.Emit(ctx, event)
}

// sessionEvents turns session lifecycle callbacks into events and metrics.
type sessionEvents struct {
	sm *SecurityManager
}

func (l sessionEvents) OnStart(ctx context.Context, s *session.Session) {
	l.sm.metrics.Inc(MetricSessionStarted)
	l.sm.emit(ctx, Event{Type: EventSessionStart, SessionID: s.ID, Host: s.Host, Success: true})
}

func (l sessionEvents) OnStop(ctx context.Context, s *session.Session) {
	l.sm.metrics.Inc(MetricSessionStopped)
	l.sm.emit(ctx, Event{Type: EventSessionStop, SessionID: s.ID, Host: s.Host, Success: true})
}

func (l sessionEvents) OnExpiration(ctx context.Context, s *session.Session) {
	l.sm.metrics.Inc(MetricSessionExpired)
	l.sm.emit(ctx, Event{Type: EventSessionExpire, SessionID: s.ID, Host: s.Host, Success: true})
}

// decodePrincipals accepts []string as stored in memory and []any as
// decoded from a persistent store.
func decodePrincipals(v any) PrincipalCollection {
	switch p := v.(type) {
	case []string:
		return NewPrincipals(p...)
	case []any:
		out := make([]string, 0, len(p))
		for _, item := range p {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return NewPrincipals(out...)
	default:
		return PrincipalCollection{}
	}
}
