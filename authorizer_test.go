package goShield

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrEthical07/goShield/authz"
	"github.com/MrEthical07/goShield/permission"
)

type failingRealm struct {
	err error
}

func (failingRealm) Name() string { return "failing" }

func (r failingRealm) AuthenticationInfo(context.Context, AuthenticationToken) (*AuthenticationInfo, error) {
	return nil, r.err
}

func (r failingRealm) HasRole(context.Context, PrincipalCollection, string) (bool, error) {
	return false, r.err
}

func (r failingRealm) IsPermitted(context.Context, PrincipalCollection, permission.Permission) (bool, error) {
	return false, r.err
}

func TestAuthorizerBulkMatchesSingle(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	ctx := context.Background()
	alice := NewPrincipals("alice")

	perms := []string{"printer:print", "printer:print:lp7200", "printer:query:lp7200", "printer:admin", "scanner:scan"}
	each, err := sm.IsPermittedEach(ctx, alice, perms...)
	if err != nil {
		t.Fatalf("each: %v", err)
	}
	if len(each) != len(perms) {
		t.Fatalf("expected %d results, got %d", len(perms), len(each))
	}
	for i, perm := range perms {
		single, err := sm.IsPermitted(ctx, alice, perm)
		if err != nil {
			t.Fatalf("single %q: %v", perm, err)
		}
		if single != each[i] {
			t.Fatalf("%q: bulk=%v single=%v", perm, each[i], single)
		}
	}
	want := []bool{true, true, true, false, false}
	if !slices.Equal(each, want) {
		t.Fatalf("expected %v, got %v", want, each)
	}

	all, err := sm.IsPermittedAll(ctx, alice, perms[:3]...)
	if err != nil || !all {
		t.Fatalf("expected all granted, got %v %v", all, err)
	}
	all, err = sm.IsPermittedAll(ctx, alice, perms...)
	if err != nil || all {
		t.Fatalf("expected all-of to fail, got %v %v", all, err)
	}
	all, err = sm.IsPermittedAll(ctx, alice)
	if err != nil || !all {
		t.Fatalf("empty all-of must hold, got %v %v", all, err)
	}
}

func TestAuthorizerAllPermission(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	ctx := context.Background()
	root := NewPrincipals("root")

	for _, perm := range []string{"printer:print", "anything:at:all", "*"} {
		if ok, err := sm.IsPermitted(ctx, root, perm); err != nil || !ok {
			t.Fatalf("%q: expected admin grant, got %v %v", perm, ok, err)
		}
	}
}

func TestAuthorizerCheckErrors(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	ctx := context.Background()
	alice := NewPrincipals("alice")

	err := sm.CheckPermissions(ctx, alice, "printer:print", "printer:admin", "scanner:scan")
	var authzErr *AuthorizationError
	if !errors.As(err, &authzErr) {
		t.Fatalf("expected *AuthorizationError, got %v", err)
	}
	if authzErr.Permission != "printer:admin" || authzErr.Principal != "alice" {
		t.Fatalf("error must name the first denied permission: %+v", authzErr)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized match, got %v", err)
	}

	if err := sm.CheckRole(ctx, alice, "operator"); err != nil {
		t.Fatalf("check operator: %v", err)
	}
	err = sm.CheckRoles(ctx, alice, "operator", "admin")
	if !errors.As(err, &authzErr) || authzErr.Role != "admin" {
		t.Fatalf("expected admin role denial, got %v", err)
	}
}

func TestAuthorizerRoles(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	ctx := context.Background()
	alice := NewPrincipals("alice")

	got, err := sm.HasRoles(ctx, alice, "operator", "admin", "operator")
	if err != nil {
		t.Fatalf("has roles: %v", err)
	}
	if !slices.Equal(got, []bool{true, false, true}) {
		t.Fatalf("unexpected roles: %v", got)
	}
	if ok, err := sm.HasAllRoles(ctx, alice, "operator", "admin"); err != nil || ok {
		t.Fatalf("expected all-roles to fail, got %v %v", ok, err)
	}
	if ok, err := sm.HasAllRoles(ctx, alice); err != nil || !ok {
		t.Fatalf("empty all-roles must hold, got %v %v", ok, err)
	}
}

func TestAuthorizerRealmErrorAborts(t *testing.T) {
	boom := errors.New("ldap down")
	realms := []Realm{failingRealm{err: boom}, newTestRealm(t, "local")}
	a := NewAuthorizer(NewRealmDecider(realms...), nil, nil)
	ctx := context.Background()
	alice := NewPrincipals("alice")

	if _, err := a.IsPermitted(ctx, alice, "printer:print"); !errors.Is(err, boom) {
		t.Fatalf("expected realm error, got %v", err)
	}
	if got, err := a.IsPermittedEach(ctx, alice, "printer:print"); err == nil || got != nil {
		t.Fatalf("bulk call must fail as a whole, got %v %v", got, err)
	}
	if err := a.CheckPermission(ctx, alice, "printer:print"); errors.Is(err, ErrUnauthorized) {
		t.Fatalf("a realm error is not a denial: %v", err)
	}
}

func TestAuthorizerMalformedPermission(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	if _, err := sm.IsPermitted(context.Background(), NewPrincipals("alice"), "printer::"); !errors.Is(err, permission.ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}
}

func TestAuthorizerModulesMode(t *testing.T) {
	denySecret, err := authz.NewRuleModule("deny-secret", nil, authz.Rule{Pattern: "printer:print:secret", Vote: authz.Deny})
	if err != nil {
		t.Fatalf("rule module: %v", err)
	}

	tests := []struct {
		strategy string
		perm     string
		want     bool
	}{
		{"deny-overrides", "printer:print:lp7200", true},
		{"deny-overrides", "printer:print:secret", false},
		{"deny-overrides", "scanner:scan", false},
		{"consensus", "printer:print:secret", false},
		// deny-secret abstains, which blocks unanimity.
		{"unanimous", "printer:print:lp7200", false},
	}

	for _, tt := range tests {
		t.Run(tt.strategy+"/"+tt.perm, func(t *testing.T) {
			sm := newTestSecurityManager(t, func(b *Builder) {
				cfg := DefaultConfig()
				cfg.Authorization.Mode = AuthorizationModeModules
				cfg.Authorization.Strategy = tt.strategy
				b.WithConfig(cfg).WithModules(denySecret)
			})
			got, err := sm.IsPermitted(context.Background(), NewPrincipals("alice"), tt.perm)
			if err != nil {
				t.Fatalf("is permitted: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAuthorizerModulesModeRoles(t *testing.T) {
	sm := newTestSecurityManager(t, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.Authorization.Mode = AuthorizationModeModules
		b.WithConfig(cfg)
	})
	ctx := context.Background()

	if ok, err := sm.HasRole(ctx, NewPrincipals("root"), "admin"); err != nil || !ok {
		t.Fatalf("expected admin role, got %v %v", ok, err)
	}
	if ok, err := sm.HasRole(ctx, NewPrincipals("alice"), "admin"); err != nil || ok {
		t.Fatalf("expected no admin role, got %v %v", ok, err)
	}
}

func TestAuthorizerEmptyPrincipalsDenied(t *testing.T) {
	sm := newTestSecurityManager(t, nil)
	ok, err := sm.IsPermitted(context.Background(), PrincipalCollection{}, "printer:print")
	if err != nil || ok {
		t.Fatalf("expected anonymous denial, got %v %v", ok, err)
	}
}
