package authz

import "fmt"

// Vote is one module's opinion on one action. The zero value is Abstain.
type Vote uint8

const (
	Abstain Vote = iota
	Grant
	Deny
)

// String returns the lowercase vote name.
func (v Vote) String() string {
	switch v {
	case Abstain:
		return "abstain"
	case Grant:
		return "grant"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("vote(%d)", uint8(v))
	}
}

// Action is the thing being authorized.
type Action interface {
	Kind() string
}

const (
	KindPermission = "permission"
	KindRole       = "role"
)

// PermissionAction asks whether the context holds Permission.
type PermissionAction struct {
	Permission string
}

func (PermissionAction) Kind() string { return KindPermission }

// RoleAction asks whether the context has Role.
type RoleAction struct {
	Role string
}

func (RoleAction) Kind() string { return KindRole }

// Context is the identity a decision is made for.
type Context interface {
	Principals() []string
	PrimaryPrincipal() string
}
