package goShield

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/goShield/permission"
)

// CachingRealm memoizes HasRole and IsPermitted answers of another realm.
//
// Keys are "<realm>:role:<principal>:<role>" and
// "<realm>:perm:<principal>:<permission>". With a nil cache, or when the
// cache fails, every call goes straight to the wrapped realm. Authentication
// is never cached.
type CachingRealm struct {
	realm   Realm
	cache   Cache
	logger  *slog.Logger
	metrics *Metrics
}

// NewCachingRealm wraps realm. logger and metrics may be nil.
func NewCachingRealm(realm Realm, cache Cache, logger *slog.Logger, metrics *Metrics) *CachingRealm {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingRealm{
		realm:   realm,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *CachingRealm) Name() string { return r.realm.Name() }

// Unwrap returns the wrapped realm.
func (r *CachingRealm) Unwrap() Realm { return r.realm }

func (r *CachingRealm) AuthenticationInfo(ctx context.Context, token AuthenticationToken) (*AuthenticationInfo, error) {
	return r.realm.AuthenticationInfo(ctx, token)
}

// Supports forwards to the wrapped realm when it is a TokenSupporter.
func (r *CachingRealm) Supports(token AuthenticationToken) bool {
	if ts, ok := r.realm.(TokenSupporter); ok {
		return ts.Supports(token)
	}
	return true
}

// OnLogout forwards to the wrapped realm when it is LogoutAware.
func (r *CachingRealm) OnLogout(ctx context.Context, principals PrincipalCollection) error {
	if la, ok := r.realm.(LogoutAware); ok {
		return la.OnLogout(ctx, principals)
	}
	return nil
}

func (r *CachingRealm) HasRole(ctx context.Context, principals PrincipalCollection, role string) (bool, error) {
	return r.cached(ctx, r.roleKey(principals.Primary(), role), func() (bool, error) {
		return r.realm.HasRole(ctx, principals, role)
	})
}

func (r *CachingRealm) IsPermitted(ctx context.Context, principals PrincipalCollection, p permission.Permission) (bool, error) {
	if p == nil {
		return false, nil
	}
	return r.cached(ctx, r.permKey(principals.Primary(), p.String()), func() (bool, error) {
		return r.realm.IsPermitted(ctx, principals, p)
	})
}

// ForgetRole drops the cached answer for principal and role.
func (r *CachingRealm) ForgetRole(ctx context.Context, principal, role string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Remove(ctx, r.roleKey(principal, role))
}

// ForgetPermission drops the cached answer for principal and perm.
func (r *CachingRealm) ForgetPermission(ctx context.Context, principal, perm string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Remove(ctx, r.permKey(principal, perm))
}

func (r *CachingRealm) roleKey(principal, role string) string {
	return r.realm.Name() + ":role:" + principal + ":" + role
}

func (r *CachingRealm) permKey(principal, perm string) string {
	return r.realm.Name() + ":perm:" + principal + ":" + perm
}

func (r *CachingRealm) cached(ctx context.Context, key string, compute func() (bool, error)) (bool, error) {
	if r.cache == nil {
		return compute()
	}

	v, ok, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		r.metrics.Inc(MetricCacheError)
		r.logger.Warn("realm cache read failed", "realm", r.realm.Name(), "key", key, "error", err)
		return compute()
	case ok:
		if b, isBool := v.(bool); isBool {
			r.metrics.Inc(MetricCacheHit)
			return b, nil
		}
	}

	r.metrics.Inc(MetricCacheMiss)
	result, err := compute()
	if err != nil {
		return false, err
	}
	if err := r.cache.Put(ctx, key, result); err != nil {
		r.metrics.Inc(MetricCacheError)
		r.logger.Warn("realm cache write failed", "realm", r.realm.Name(), "key", key, "error", err)
	}
	return result, nil
}
