// Package session implements the session lifecycle: the Session record, the
// pluggable DAO persistence contract with in-memory and Redis backings, the
// Manager state machine, and a background Reaper.
//
// # Lifecycle
//
// A session is created by [Manager.Start], revalidated on every access,
// refreshed only by [Manager.Touch], and terminated by [Manager.Stop] or by
// the [Reaper]. Expiration is a pure function of stored timestamps: a running
// session is expired once now - LastAccessTime exceeds its Timeout.
//
// # Errors
//
// [ErrUnknownSession], [ErrStoppedSession], and [ErrExpiredSession] all match
// [ErrInvalidSession] under errors.Is, and ErrExpiredSession also matches
// ErrStoppedSession. They are recoverable conditions; the package never
// retries. [ErrIllegalState] signals a wiring defect.
//
// # What this package must NOT do
//
//   - Import goShield, authz, or permission (no upward imports).
//   - Make authorization decisions or interpret principals.
//   - Update LastAccessTime as a side effect of reads.
package session
