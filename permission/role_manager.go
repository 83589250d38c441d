package permission

import (
	"errors"
	"sort"
	"sync"
)

// RoleManager maps role names to parsed permission sets.
//
// RoleManager instances are intended to be populated during initialization,
// frozen, and then treated as read-only.
type RoleManager struct {
	resolver Resolver

	mu     sync.RWMutex
	roles  map[string][]Permission
	frozen bool
}

// NewRoleManager returns an empty manager. A nil resolver defaults to a
// case-insensitive WildcardResolver.
func NewRoleManager(resolver Resolver) *RoleManager {
	if resolver == nil {
		resolver = WildcardResolver{}
	}
	return &RoleManager{
		resolver: resolver,
		roles:    make(map[string][]Permission),
	}
}

// RegisterRole parses permissionNames and stores them under roleName.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered: " + roleName)
	}

	perms := make([]Permission, 0, len(permissionNames))
	for _, name := range permissionNames {
		p, err := rm.resolver.Resolve(name)
		if err != nil {
			return err
		}
		perms = append(perms, p)
	}

	rm.roles[roleName] = perms
	return nil
}

// HasRole reports whether roleName is registered.
func (rm *RoleManager) HasRole(roleName string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.roles[roleName]
	return ok
}

// Permissions returns a copy of the permissions granted to roleName.
func (rm *RoleManager) Permissions(roleName string) ([]Permission, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	perms, ok := rm.roles[roleName]
	if !ok {
		return nil, false
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out, true
}

// Implies reports whether any of roleNames grants want.
func (rm *RoleManager) Implies(roleNames []string, want Permission) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for _, name := range roleNames {
		if ImpliesAny(rm.roles[name], want) {
			return true
		}
	}
	return false
}

// Roles returns the registered role names in sorted order.
func (rm *RoleManager) Roles() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	names := make([]string, 0, len(rm.roles))
	for name := range rm.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze prevents further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// Resolver returns the resolver used to parse role permissions.
func (rm *RoleManager) Resolver() Resolver {
	return rm.resolver
}
