package goShield

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"sync"

	"github.com/MrEthical07/goShield/permission"
)

// Realm is the source of truth for accounts, roles, and permissions.
//
// AuthenticationInfo fails with an error matching ErrAuthentication for an
// unknown principal or a bad credential. HasRole and IsPermitted return
// false for principals the realm does not know; errors are reserved for
// backend failures.
type Realm interface {
	Name() string
	AuthenticationInfo(ctx context.Context, token AuthenticationToken) (*AuthenticationInfo, error)
	HasRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error)
	IsPermitted(ctx context.Context, principals PrincipalCollection, p permission.Permission) (bool, error)
}

// ResolverAware is implemented by realms that parse permission strings
// themselves. When Authorization.CaseSensitive is set, Build hands them the
// same resolver the authorizer uses.
type ResolverAware interface {
	SetResolver(res permission.Resolver) error
}

// LogoutAware realms are told when an identity logs out.
type LogoutAware interface {
	OnLogout(ctx context.Context, principals PrincipalCollection) error
}

// TokenSupporter realms only authenticate tokens they support.
type TokenSupporter interface {
	Supports(token AuthenticationToken) bool
}

// CredentialsMatcher compares submitted credentials to the stored ones.
type CredentialsMatcher interface {
	Match(token AuthenticationToken, info *AuthenticationInfo) bool
}

// SimpleCredentialsMatcher compares credentials byte for byte in constant time.
type SimpleCredentialsMatcher struct{}

func (SimpleCredentialsMatcher) Match(token AuthenticationToken, info *AuthenticationInfo) bool {
	if token == nil || info == nil {
		return false
	}
	submitted := token.Credentials()
	if len(submitted) == 0 || len(info.Credentials) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(submitted, info.Credentials) == 1
}

type account struct {
	secret      []byte
	roles       []string
	grants      []string
	permissions []permission.Permission
}

// SimpleRealm is an in-memory account store backed by a RoleManager.
// Accounts may be added while the realm is serving.
type SimpleRealm struct {
	name     string
	roles    *permission.RoleManager
	resolver permission.Resolver
	matcher  CredentialsMatcher

	mu       sync.RWMutex
	accounts map[string]*account
}

// NewSimpleRealm returns an empty realm. A nil role manager gets a fresh,
// empty one. Direct permissions are parsed with the role manager's resolver.
func NewSimpleRealm(name string, roles *permission.RoleManager) *SimpleRealm {
	if roles == nil {
		roles = permission.NewRoleManager(nil)
	}
	return &SimpleRealm{
		name:     name,
		roles:    roles,
		resolver: roles.Resolver(),
		matcher:  SimpleCredentialsMatcher{},
		accounts: make(map[string]*account),
	}
}

func (r *SimpleRealm) Name() string { return r.name }

// SetCredentialsMatcher replaces the matcher. Not safe to call while serving.
func (r *SimpleRealm) SetCredentialsMatcher(m CredentialsMatcher) {
	if m != nil {
		r.matcher = m
	}
}

// SetResolver replaces the resolver used by GrantPermissions and re-parses
// every direct grant with it. Role permissions stay with the role manager's
// resolver. Not safe to call while serving.
func (r *SimpleRealm) SetResolver(res permission.Resolver) error {
	if res == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	reparsed := make(map[*account][]permission.Permission, len(r.accounts))
	for name, acct := range r.accounts {
		perms, err := resolveAll(res, acct.grants)
		if err != nil {
			return fmt.Errorf("account %q: %w", name, err)
		}
		reparsed[acct] = perms
	}
	for acct, perms := range reparsed {
		acct.permissions = perms
	}
	r.resolver = res
	return nil
}

func resolveAll(res permission.Resolver, raw []string) ([]permission.Permission, error) {
	parsed := make([]permission.Permission, 0, len(raw))
	for _, s := range raw {
		p, err := res.Resolve(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}
	return parsed, nil
}

// AddAccount registers username with an opaque secret and role names.
func (r *SimpleRealm) AddAccount(username string, secret []byte, roles ...string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrIllegalState)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[username]; exists {
		return fmt.Errorf("%w: account %q already exists", ErrIllegalState, username)
	}
	r.accounts[username] = &account{
		secret: append([]byte(nil), secret...),
		roles:  slices.Clone(roles),
	}
	return nil
}

// GrantPermissions attaches direct permissions to an existing account.
func (r *SimpleRealm) GrantPermissions(username string, perms ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	parsed, err := resolveAll(r.resolver, perms)
	if err != nil {
		return err
	}
	acct, ok := r.accounts[username]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAccount, username)
	}
	acct.grants = append(acct.grants, perms...)
	acct.permissions = append(acct.permissions, parsed...)
	return nil
}

// RemoveAccount deletes username and reports whether it existed.
func (r *SimpleRealm) RemoveAccount(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.accounts[username]
	delete(r.accounts, username)
	return ok
}

func (r *SimpleRealm) lookup(principal string) (*account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[principal]
	return acct, ok
}

func (r *SimpleRealm) AuthenticationInfo(_ context.Context, token AuthenticationToken) (*AuthenticationInfo, error) {
	if token == nil {
		return nil, fmt.Errorf("%w: nil token", ErrAuthentication)
	}

	principal := token.Principal()
	acct, ok := r.lookup(principal)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrAuthentication, ErrUnknownAccount, principal)
	}

	info := &AuthenticationInfo{
		Principals:  NewPrincipals(principal),
		Credentials: append([]byte(nil), acct.secret...),
		RealmName:   r.name,
	}
	if !r.matcher.Match(token, info) {
		return nil, fmt.Errorf("%w: %w for %q", ErrAuthentication, ErrIncorrectCredentials, principal)
	}
	return info, nil
}

func (r *SimpleRealm) HasRole(_ context.Context, principals PrincipalCollection, role string) (bool, error) {
	acct, ok := r.lookup(principals.Primary())
	if !ok {
		return false, nil
	}
	return slices.Contains(acct.roles, role), nil
}

func (r *SimpleRealm) IsPermitted(_ context.Context, principals PrincipalCollection, p permission.Permission) (bool, error) {
	if p == nil {
		return false, nil
	}
	acct, ok := r.lookup(principals.Primary())
	if !ok {
		return false, nil
	}
	if permission.ImpliesAny(acct.permissions, p) {
		return true, nil
	}
	return r.roles.Implies(acct.roles, p), nil
}
