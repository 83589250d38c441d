// Package middleware exposes net/http adapters that bind a goShield Subject
// to each request and enforce permission or role requirements.
//
// # Guards
//
//   - [Bind] resolves the caller's session from a bearer token, touches it,
//     and binds the resulting Subject into a fresh request Scope.
//   - [RequirePermission] and [RequireRole] reject requests whose bound
//     Subject fails the check.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into SecurityManager and Subject
// calls. Every decision is delegated to goShield.
//
// # What this package must NOT do
//
//   - Authenticate credentials (login endpoints call Subject.Login).
//   - Access session storage directly.
//   - Make authorization decisions beyond pass/reject from the Subject.
package middleware
