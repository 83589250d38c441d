// Package goShield provides an access-control runtime: pluggable realms for
// authentication and authorization data, a voting authorization engine,
// store-backed sessions, and a per-caller [Subject] facade.
//
// A [SecurityManager] is assembled once through [Builder.Build] and is safe
// for concurrent use. Subjects are cheap per-request views of it; they hold
// the caller's principals and an optional session handle and forward every
// decision to the SecurityManager.
//
// # Architecture boundaries
//
// goShield is the public surface. It exposes [SecurityManager], [Subject],
// [Builder], [Config], the [Realm] and [Cache] contracts, and value types
// ([PrincipalCollection], [Identity], [MetricsSnapshot]). Permission parsing
// lives in permission, the voting engine in authz, the session state machine
// in session, and event dispatch and failed-login counters under internal/.
//
// # Errors
//
// Authentication failures match [ErrAuthentication]. Authorization check
// failures match [ErrUnauthorized] and carry an [*AuthorizationError].
// Wiring defects match [ErrIllegalState] and are never folded into
// authentication failures. Logins refused by an [AttemptLimiter] match both
// [ErrLoginThrottled] and [ErrAuthentication].
//
// # What this package must NOT do
//
//   - Hash, sign, or store credentials beyond the comparison a Realm performs.
//   - Return event sink errors to callers.
//   - Perform I/O during Builder configuration; only Build and later calls do.
package goShield
