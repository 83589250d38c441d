package goShield

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goShield/authz"
	"github.com/MrEthical07/goShield/permission"
)

// Authorizer answers permission and role questions for a principal
// collection. Bulk variants return one result per input, in input order.
type Authorizer interface {
	IsPermitted(ctx context.Context, principals PrincipalCollection, perm string) (bool, error)
	IsPermittedEach(ctx context.Context, principals PrincipalCollection, perms ...string) ([]bool, error)
	IsPermittedAll(ctx context.Context, principals PrincipalCollection, perms ...string) (bool, error)
	CheckPermission(ctx context.Context, principals PrincipalCollection, perm string) error
	CheckPermissions(ctx context.Context, principals PrincipalCollection, perms ...string) error

	HasRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error)
	HasRoles(ctx context.Context, principals PrincipalCollection, roles ...string) ([]bool, error)
	HasAllRoles(ctx context.Context, principals PrincipalCollection, roles ...string) (bool, error)
	CheckRole(ctx context.Context, principals PrincipalCollection, role string) error
	CheckRoles(ctx context.Context, principals PrincipalCollection, roles ...string) error
}

// Decider makes one permission or role decision.
type Decider interface {
	DecidePermission(ctx context.Context, principals PrincipalCollection, p permission.Permission) (bool, error)
	DecideRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error)
}

// RealmDecider grants when any realm grants. A realm error aborts the decision.
type RealmDecider struct {
	realms []Realm
}

func NewRealmDecider(realms ...Realm) *RealmDecider {
	return &RealmDecider{realms: append([]Realm(nil), realms...)}
}

func (d *RealmDecider) DecidePermission(ctx context.Context, principals PrincipalCollection, p permission.Permission) (bool, error) {
	return anyRealmGrants(d.realms, func(r Realm) (bool, error) {
		return r.IsPermitted(ctx, principals, p)
	})
}

func (d *RealmDecider) DecideRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error) {
	return anyRealmGrants(d.realms, func(r Realm) (bool, error) {
		return r.HasRole(ctx, principals, role)
	})
}

func anyRealmGrants(realms []Realm, ask func(Realm) (bool, error)) (bool, error) {
	for _, r := range realms {
		ok, err := ask(r)
		if err != nil {
			return false, fmt.Errorf("realm %q: %w", r.Name(), err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ModuleDecider routes every decision through a voting engine.
type ModuleDecider struct {
	engine *authz.Engine
}

func NewModuleDecider(engine *authz.Engine) *ModuleDecider {
	return &ModuleDecider{engine: engine}
}

func (d *ModuleDecider) DecidePermission(ctx context.Context, principals PrincipalCollection, p permission.Permission) (bool, error) {
	return d.engine.Decide(ctx, principals, authz.PermissionAction{Permission: p.String()})
}

func (d *ModuleDecider) DecideRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error) {
	return d.engine.Decide(ctx, principals, authz.RoleAction{Role: role})
}

// RealmPermissionModule votes Grant on permission actions when any realm
// grants, and abstains otherwise.
type RealmPermissionModule struct {
	realms   []Realm
	resolver permission.Resolver
}

func NewRealmPermissionModule(resolver permission.Resolver, realms ...Realm) *RealmPermissionModule {
	if resolver == nil {
		resolver = permission.WildcardResolver{}
	}
	return &RealmPermissionModule{realms: append([]Realm(nil), realms...), resolver: resolver}
}

func (m *RealmPermissionModule) Name() string { return "realm-permissions" }

func (m *RealmPermissionModule) Supports(action authz.Action) bool {
	_, ok := action.(authz.PermissionAction)
	return ok
}

func (m *RealmPermissionModule) Vote(ctx context.Context, c authz.Context, action authz.Action) (authz.Vote, error) {
	pa, ok := action.(authz.PermissionAction)
	if !ok {
		return authz.Abstain, nil
	}
	p, err := m.resolver.Resolve(pa.Permission)
	if err != nil {
		return authz.Abstain, err
	}
	principals := principalsOf(c)
	granted, err := anyRealmGrants(m.realms, func(r Realm) (bool, error) {
		return r.IsPermitted(ctx, principals, p)
	})
	if err != nil || !granted {
		return authz.Abstain, err
	}
	return authz.Grant, nil
}

// RealmRoleModule votes Grant on role actions when any realm grants, and
// abstains otherwise.
type RealmRoleModule struct {
	realms []Realm
}

func NewRealmRoleModule(realms ...Realm) *RealmRoleModule {
	return &RealmRoleModule{realms: append([]Realm(nil), realms...)}
}

func (m *RealmRoleModule) Name() string { return "realm-roles" }

func (m *RealmRoleModule) Supports(action authz.Action) bool {
	_, ok := action.(authz.RoleAction)
	return ok
}

func (m *RealmRoleModule) Vote(ctx context.Context, c authz.Context, action authz.Action) (authz.Vote, error) {
	ra, ok := action.(authz.RoleAction)
	if !ok {
		return authz.Abstain, nil
	}
	principals := principalsOf(c)
	granted, err := anyRealmGrants(m.realms, func(r Realm) (bool, error) {
		return r.HasRole(ctx, principals, ra.Role)
	})
	if err != nil || !granted {
		return authz.Abstain, err
	}
	return authz.Grant, nil
}

func principalsOf(c authz.Context) PrincipalCollection {
	switch v := c.(type) {
	case PrincipalCollection:
		return v
	case *Identity:
		return v.PrincipalCollection()
	case nil:
		return PrincipalCollection{}
	default:
		return NewPrincipals(c.Principals()...)
	}
}

// DefaultAuthorizer implements Authorizer over a Decider. Bulk and all-of
// variants are reductions over single decisions.
type DefaultAuthorizer struct {
	decider  Decider
	resolver permission.Resolver
	metrics  *Metrics
}

// NewAuthorizer returns an Authorizer. A nil resolver selects the
// case-insensitive wildcard resolver; metrics may be nil.
func NewAuthorizer(decider Decider, resolver permission.Resolver, metrics *Metrics) *DefaultAuthorizer {
	if resolver == nil {
		resolver = permission.WildcardResolver{}
	}
	return &DefaultAuthorizer{decider: decider, resolver: resolver, metrics: metrics}
}

func (a *DefaultAuthorizer) IsPermitted(ctx context.Context, principals PrincipalCollection, perm string) (bool, error) {
	p, err := a.resolver.Resolve(perm)
	if err != nil {
		return false, err
	}
	return a.record(func() (bool, error) {
		return a.decider.DecidePermission(ctx, principals, p)
	})
}

func (a *DefaultAuthorizer) IsPermittedEach(ctx context.Context, principals PrincipalCollection, perms ...string) ([]bool, error) {
	out := make([]bool, len(perms))
	for i, perm := range perms {
		ok, err := a.IsPermitted(ctx, principals, perm)
		if err != nil {
			return nil, err
		}
		out[i] = ok
	}
	return out, nil
}

func (a *DefaultAuthorizer) IsPermittedAll(ctx context.Context, principals PrincipalCollection, perms ...string) (bool, error) {
	for _, perm := range perms {
		ok, err := a.IsPermitted(ctx, principals, perm)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (a *DefaultAuthorizer) CheckPermission(ctx context.Context, principals PrincipalCollection, perm string) error {
	ok, err := a.IsPermitted(ctx, principals, perm)
	if err != nil {
		return err
	}
	if !ok {
		return &AuthorizationError{Principal: principals.Primary(), Permission: perm}
	}
	return nil
}

func (a *DefaultAuthorizer) CheckPermissions(ctx context.Context, principals PrincipalCollection, perms ...string) error {
	for _, perm := range perms {
		if err := a.CheckPermission(ctx, principals, perm); err != nil {
			return err
		}
	}
	return nil
}

func (a *DefaultAuthorizer) HasRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error) {
	return a.record(func() (bool, error) {
		return a.decider.DecideRole(ctx, principals, role)
	})
}

func (a *DefaultAuthorizer) HasRoles(ctx context.Context, principals PrincipalCollection, roles ...string) ([]bool, error) {
	out := make([]bool, len(roles))
	for i, role := range roles {
		ok, err := a.HasRole(ctx, principals, role)
		if err != nil {
			return nil, err
		}
		out[i] = ok
	}
	return out, nil
}

func (a *DefaultAuthorizer) HasAllRoles(ctx context.Context, principals PrincipalCollection, roles ...string) (bool, error) {
	for _, role := range roles {
		ok, err := a.HasRole(ctx, principals, role)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (a *DefaultAuthorizer) CheckRole(ctx context.Context, principals PrincipalCollection, role string) error {
	ok, err := a.HasRole(ctx, principals, role)
	if err != nil {
		return err
	}
	if !ok {
		return &AuthorizationError{Principal: principals.Primary(), Role: role}
	}
	return nil
}

func (a *DefaultAuthorizer) CheckRoles(ctx context.Context, principals PrincipalCollection, roles ...string) error {
	for _, role := range roles {
		if err := a.CheckRole(ctx, principals, role); err != nil {
			return err
		}
	}
	return nil
}

func (a *DefaultAuthorizer) record(decide func() (bool, error)) (bool, error) {
	var start time.Time
	if a.metrics.LatencyEnabled() {
		start = time.Now()
	}

	ok, err := decide()

	if !start.IsZero() {
		a.metrics.Observe(MetricDecisionLatency, time.Since(start))
	}
	switch {
	case err != nil:
		a.metrics.Inc(MetricAuthzError)
		return false, err
	case ok:
		a.metrics.Inc(MetricAuthzGranted)
	default:
		a.metrics.Inc(MetricAuthzDenied)
	}
	return ok, nil
}
