package authz

import "context"

// Module is an independent policy unit. The engine only asks modules whose
// Supports returns true; an unsupported action never produces a vote.
type Module interface {
	Name() string
	Supports(action Action) bool
	Vote(ctx context.Context, c Context, action Action) (Vote, error)
}

// ModuleFunc adapts a function into a Module. A nil SupportsFn supports
// every action.
type ModuleFunc struct {
	ID         string
	SupportsFn func(Action) bool
	VoteFn     func(ctx context.Context, c Context, action Action) (Vote, error)
}

func (m ModuleFunc) Name() string { return m.ID }

func (m ModuleFunc) Supports(action Action) bool {
	if m.SupportsFn == nil {
		return true
	}
	return m.SupportsFn(action)
}

func (m ModuleFunc) Vote(ctx context.Context, c Context, action Action) (Vote, error) {
	if m.VoteFn == nil {
		return Abstain, nil
	}
	return m.VoteFn(ctx, c, action)
}

// SupportsKind returns a Supports predicate matching actions of the given kinds.
func SupportsKind(kinds ...string) func(Action) bool {
	return func(a Action) bool {
		if a == nil {
			return false
		}
		for _, k := range kinds {
			if a.Kind() == k {
				return true
			}
		}
		return false
	}
}
