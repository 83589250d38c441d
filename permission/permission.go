package permission

import (
	"errors"
	"strings"
)

const (
	wildcardToken     = "*"
	partDivider       = ":"
	subpartDivider    = ","
	defaultIgnoreCase = true
)

// ErrInvalidPermission is returned when a permission string cannot be parsed.
var ErrInvalidPermission = errors.New("invalid permission")

// Permission describes a resource/action grant. A held permission P permits a
// requested permission Q when P.Implies(Q).
type Permission interface {
	Implies(other Permission) bool
	String() string
}

// AllPermission implies every other permission.
type AllPermission struct{}

func (AllPermission) Implies(Permission) bool { return true }

func (AllPermission) String() string { return wildcardToken }

// WildcardPermission is a colon-delimited permission such as "user:read,write:42".
// Each part is a set of comma-separated subparts; "*" matches any subpart.
// Parts missing from the end of the implying permission behave as "*", so
// "user" implies "user:read:42".
type WildcardPermission struct {
	raw   string
	parts [][]string
}

// NewWildcard parses raw with case-insensitive matching.
func NewWildcard(raw string) (*WildcardPermission, error) {
	return NewWildcardCase(raw, !defaultIgnoreCase)
}

// NewWildcardCase parses raw. When caseSensitive is false all subparts are
// lowercased before comparison.
func NewWildcardCase(raw string, caseSensitive bool) (*WildcardPermission, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.Join(ErrInvalidPermission, errors.New("permission string cannot be empty"))
	}
	if !caseSensitive {
		trimmed = strings.ToLower(trimmed)
	}

	rawParts := strings.Split(trimmed, partDivider)
	parts := make([][]string, 0, len(rawParts))
	for _, rawPart := range rawParts {
		rawPart = strings.TrimSpace(rawPart)
		if rawPart == "" {
			return nil, errors.Join(ErrInvalidPermission, errors.New("empty part in "+raw))
		}

		subparts := strings.Split(rawPart, subpartDivider)
		set := make([]string, 0, len(subparts))
		for _, sp := range subparts {
			sp = strings.TrimSpace(sp)
			if sp == "" {
				return nil, errors.Join(ErrInvalidPermission, errors.New("empty subpart in "+raw))
			}
			set = append(set, sp)
		}
		parts = append(parts, set)
	}

	return &WildcardPermission{raw: trimmed, parts: parts}, nil
}

// MustWildcard is NewWildcard that panics on error. Intended for static tables.
func MustWildcard(raw string) *WildcardPermission {
	p, err := NewWildcard(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (w *WildcardPermission) String() string {
	if w == nil {
		return ""
	}
	return w.raw
}

// Implies reports whether w grants other. Only wildcard permissions (and
// AllPermission, which is never implied by anything narrower) are comparable.
func (w *WildcardPermission) Implies(other Permission) bool {
	if w == nil || other == nil {
		return false
	}

	o, ok := other.(*WildcardPermission)
	if !ok {
		return false
	}

	for i, otherPart := range o.parts {
		// w is shorter than other: the missing tail is implicitly "*".
		if i >= len(w.parts) {
			return true
		}

		part := w.parts[i]
		if containsWildcard(part) {
			continue
		}
		if !containsAll(part, otherPart) {
			return false
		}
	}

	// w is longer than other: every extra part must be a wildcard.
	for i := len(o.parts); i < len(w.parts); i++ {
		if !containsWildcard(w.parts[i]) {
			return false
		}
	}

	return true
}

func containsWildcard(part []string) bool {
	for _, sp := range part {
		if sp == wildcardToken {
			return true
		}
	}
	return false
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Resolver converts permission strings into Permission values.
type Resolver interface {
	Resolve(raw string) (Permission, error)
}

// WildcardResolver resolves every string as a WildcardPermission. A bare "*"
// resolves to AllPermission.
type WildcardResolver struct {
	CaseSensitive bool
}

func (r WildcardResolver) Resolve(raw string) (Permission, error) {
	if strings.TrimSpace(raw) == wildcardToken {
		return AllPermission{}, nil
	}
	return NewWildcardCase(raw, r.CaseSensitive)
}

// ImpliesAny reports whether any held permission implies want.
func ImpliesAny(held []Permission, want Permission) bool {
	for _, p := range held {
		if p != nil && p.Implies(want) {
			return true
		}
	}
	return false
}
