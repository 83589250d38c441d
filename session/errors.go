package session

import (
	"errors"
	"fmt"
)

// ErrInvalidSession is the root of every session-state failure. Unknown,
// stopped, and expired sessions all match it with errors.Is.
var ErrInvalidSession = errors.New("invalid session")

// ErrUnknownSession is returned when no record exists for a session ID.
var ErrUnknownSession = &stateError{msg: "unknown session", parents: []error{ErrInvalidSession}}

// ErrStoppedSession is returned when a session has been explicitly stopped.
var ErrStoppedSession = &stateError{msg: "session stopped", parents: []error{ErrInvalidSession}}

// ErrExpiredSession is returned when a session exists but has expired.
var ErrExpiredSession = &stateError{msg: "session expired", parents: []error{ErrStoppedSession, ErrInvalidSession}}

// ErrIllegalState marks configuration or programming defects, such as a DAO
// that cannot assign a session ID. Callers should not retry.
var ErrIllegalState = errors.New("illegal state")

// ErrSessionIDCollision is returned by Create when the ID is already in use.
var ErrSessionIDCollision = errors.New("session id already exists")

// ErrInvalidArgument is returned for malformed input such as empty attribute keys.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrConcurrentUpdate is returned by DAO.Update when the stored record moved
// past the revision the caller read. Re-read and retry.
var ErrConcurrentUpdate = errors.New("session modified concurrently")

// ErrStoreUnavailable wraps backend failures from persistent DAOs.
var ErrStoreUnavailable = errors.New("session store unavailable")

type stateError struct {
	msg     string
	parents []error
}

func (e *stateError) Error() string { return e.msg }

func (e *stateError) Is(target error) bool {
	for _, p := range e.parents {
		if errors.Is(p, target) {
			return true
		}
	}
	return false
}

func unknownSession(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownSession, id)
}

func stoppedSession(id string) error {
	return fmt.Errorf("%w: %q", ErrStoppedSession, id)
}

func expiredSession(id string) error {
	return fmt.Errorf("%w: %q", ErrExpiredSession, id)
}
