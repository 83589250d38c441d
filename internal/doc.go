// Package internal holds helpers private to goShield.
//
// # Sub-packages
//
//   - events: event model, sinks, and the async Dispatcher
//   - rate: Redis-backed failed-login counters
//
// # What this package must NOT do
//
//   - Export types that appear in the public goShield API except through
//     aliases in the root package.
//   - Be imported by any package outside the goShield module.
package internal
