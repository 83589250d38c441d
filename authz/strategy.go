package authz

// Strategy folds the module votes for one decision into a boolean. votes
// contains only the modules that supported the action, keyed by module name.
type Strategy interface {
	Decide(c Context, action Action, votes map[string]Vote) bool
}

// StrategyFunc adapts a function into a Strategy.
type StrategyFunc func(c Context, action Action, votes map[string]Vote) bool

func (f StrategyFunc) Decide(c Context, action Action, votes map[string]Vote) bool {
	return f(c, action, votes)
}

// DenyOverrides denies on any Deny, grants on any Grant, and otherwise
// denies. No votes means deny.
var DenyOverrides Strategy = StrategyFunc(denyOverrides)

// Unanimous grants only when there is at least one vote and every vote is Grant.
var Unanimous Strategy = StrategyFunc(unanimous)

// Consensus grants when grants outnumber denies. Abstentions are ignored
// and ties deny.
var Consensus Strategy = StrategyFunc(consensus)

func denyOverrides(_ Context, _ Action, votes map[string]Vote) bool {
	granted := false
	for _, v := range votes {
		switch v {
		case Deny:
			return false
		case Grant:
			granted = true
		}
	}
	return granted
}

func unanimous(_ Context, _ Action, votes map[string]Vote) bool {
	if len(votes) == 0 {
		return false
	}
	for _, v := range votes {
		if v != Grant {
			return false
		}
	}
	return true
}

func consensus(_ Context, _ Action, votes map[string]Vote) bool {
	grants, denies := 0, 0
	for _, v := range votes {
		switch v {
		case Grant:
			grants++
		case Deny:
			denies++
		}
	}
	return grants > denies
}

// StrategyByName resolves the configuration names "deny-overrides",
// "unanimous", and "consensus". The empty name selects DenyOverrides.
func StrategyByName(name string) (Strategy, bool) {
	switch name {
	case "", "deny-overrides":
		return DenyOverrides, true
	case "unanimous":
		return Unanimous, true
	case "consensus":
		return Consensus, true
	default:
		return nil, false
	}
}
