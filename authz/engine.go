package authz

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidModule is returned by NewEngine for nil, unnamed, or
	// duplicate modules.
	ErrInvalidModule = errors.New("invalid authorization module")
	// ErrModuleFailed wraps an error returned by a module's Vote.
	ErrModuleFailed = errors.New("authorization module failed")
)

// Engine asks every supporting module for a vote and lets the strategy
// decide. It is immutable after construction and safe for concurrent use.
type Engine struct {
	strategy Strategy
	modules  []Module
}

// NewEngine builds an engine. A nil strategy selects DenyOverrides. Modules
// are consulted in the given order.
func NewEngine(strategy Strategy, modules ...Module) (*Engine, error) {
	if strategy == nil {
		strategy = DenyOverrides
	}

	seen := make(map[string]struct{}, len(modules))
	for i, m := range modules {
		if m == nil {
			return nil, fmt.Errorf("%w: module %d is nil", ErrInvalidModule, i)
		}
		name := m.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: module %d has no name", ErrInvalidModule, i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate module %q", ErrInvalidModule, name)
		}
		seen[name] = struct{}{}
	}

	return &Engine{
		strategy: strategy,
		modules:  append([]Module(nil), modules...),
	}, nil
}

// Strategy returns the configured strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Modules returns the registered module names in consultation order.
func (e *Engine) Modules() []string {
	names := make([]string, len(e.modules))
	for i, m := range e.modules {
		names[i] = m.Name()
	}
	return names
}

// Votes collects one vote from each module that supports action. The first
// module error aborts collection.
func (e *Engine) Votes(ctx context.Context, c Context, action Action) (map[string]Vote, error) {
	votes := make(map[string]Vote, len(e.modules))
	for _, m := range e.modules {
		if !m.Supports(action) {
			continue
		}
		v, err := m.Vote(ctx, c, action)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrModuleFailed, m.Name(), err)
		}
		votes[m.Name()] = v
	}
	return votes, nil
}

// Decide returns the strategy's verdict for action. With no supporting
// modules the strategy sees an empty vote map.
func (e *Engine) Decide(ctx context.Context, c Context, action Action) (bool, error) {
	votes, err := e.Votes(ctx, c, action)
	if err != nil {
		return false, err
	}
	return e.strategy.Decide(c, action, votes), nil
}
