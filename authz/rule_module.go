package authz

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goShield/permission"
)

// Rule pairs a permission pattern with the vote cast when it matches.
type Rule struct {
	Pattern string
	Vote    Vote
}

type compiledRule struct {
	pattern permission.Permission
	vote    Vote
}

// RuleModule votes on permission actions from an ordered rule list. The
// first rule whose pattern implies the requested permission decides; no
// match abstains. A Deny rule placed before broader grants acts as an
// explicit exclusion.
type RuleModule struct {
	name     string
	resolver permission.Resolver
	rules    []compiledRule
}

// NewRuleModule parses every rule pattern with resolver. A nil resolver
// selects the case-insensitive wildcard resolver.
func NewRuleModule(name string, resolver permission.Resolver, rules ...Rule) (*RuleModule, error) {
	if resolver == nil {
		resolver = permission.WildcardResolver{}
	}
	m := &RuleModule{
		name:     name,
		resolver: resolver,
		rules:    make([]compiledRule, 0, len(rules)),
	}
	for _, r := range rules {
		p, err := resolver.Resolve(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %w", ErrInvalidModule, r.Pattern, err)
		}
		m.rules = append(m.rules, compiledRule{pattern: p, vote: r.Vote})
	}
	return m, nil
}

func (m *RuleModule) Name() string { return m.name }

func (m *RuleModule) Supports(action Action) bool {
	_, ok := action.(PermissionAction)
	return ok
}

func (m *RuleModule) Vote(_ context.Context, _ Context, action Action) (Vote, error) {
	pa, ok := action.(PermissionAction)
	if !ok {
		return Abstain, nil
	}
	want, err := m.resolver.Resolve(pa.Permission)
	if err != nil {
		return Abstain, err
	}
	for _, r := range m.rules {
		if r.pattern.Implies(want) {
			return r.vote, nil
		}
	}
	return Abstain, nil
}
