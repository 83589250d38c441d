package goShield

import (
	"slices"
	"strings"
)

// PrincipalCollection is an ordered, immutable list of principals. The first
// entry is the primary principal. The zero value is empty.
//
// PrincipalCollection implements authz.Context.
type PrincipalCollection struct {
	principals []string
}

// NewPrincipals copies the non-empty values of principals in order.
func NewPrincipals(principals ...string) PrincipalCollection {
	out := make([]string, 0, len(principals))
	for _, p := range principals {
		if p != "" {
			out = append(out, p)
		}
	}
	return PrincipalCollection{principals: out}
}

func (pc PrincipalCollection) IsEmpty() bool {
	return len(pc.principals) == 0
}

func (pc PrincipalCollection) Len() int {
	return len(pc.principals)
}

// Primary returns the first principal, or "" when empty.
func (pc PrincipalCollection) Primary() string {
	if len(pc.principals) == 0 {
		return ""
	}
	return pc.principals[0]
}

// Slice returns a copy of the principals.
func (pc PrincipalCollection) Slice() []string {
	return slices.Clone(pc.principals)
}

func (pc PrincipalCollection) Contains(principal string) bool {
	return slices.Contains(pc.principals, principal)
}

// Principals returns a copy of the principals.
func (pc PrincipalCollection) Principals() []string {
	return pc.Slice()
}

// PrimaryPrincipal is Primary.
func (pc PrincipalCollection) PrimaryPrincipal() string {
	return pc.Primary()
}

func (pc PrincipalCollection) String() string {
	return "[" + strings.Join(pc.principals, ", ") + "]"
}
