// Package rate counts failed login attempts in Redis.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes,
// after the configured namespace:
//   - al:  login failures per principal
//   - ali: login failures per host
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled login (the Authenticator does).
//   - Be imported outside the goShield module.
package rate
