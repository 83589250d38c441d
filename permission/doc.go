// Package permission provides the Permission abstraction, wildcard permission
// parsing with the implies relation, and role-to-permission composition used
// by goShield authorization checks.
//
// # Wildcard syntax
//
// A wildcard permission is a colon-delimited list of parts, each part a
// comma-separated set of subparts:
//
//	user:read,write:42
//
// "*" in a part matches any subpart. Trailing parts omitted from the granting
// permission act as "*", so "printer" implies "printer:print:lp7200".
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goShield, session, or authz.
package permission
