// Package cache provides the key-value caches used to memoize realm role
// and permission lookups: [Memory] for a single process and [Redis] for a
// shared deployment. Both satisfy goShield.Cache.
//
// A cache miss and a cache failure are distinct: Get returns ok=false with a
// nil error on a miss, and callers are expected to fall back to direct
// computation on either.
package cache
