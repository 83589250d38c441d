package goShield

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goShield/session"
)

var (
	// ErrAuthentication is the root of every authentication failure.
	ErrAuthentication = errors.New("authentication failed")
	// ErrUnknownAccount is returned by realms that hold no account for the token's principal.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrIncorrectCredentials is returned when the submitted credentials do not match the stored ones.
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	// ErrUnsupportedToken is returned when no realm accepts the token type.
	ErrUnsupportedToken = errors.New("unsupported authentication token")
	// ErrLoginThrottled is returned when the attempt limiter refuses a login.
	// It also matches ErrAuthentication.
	ErrLoginThrottled = fmt.Errorf("%w: too many failed attempts", ErrAuthentication)

	// ErrUnauthorized is the root of every authorization failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnauthenticated is returned by Subject check methods when no identity is bound.
	// It also matches ErrUnauthorized.
	ErrUnauthenticated = fmt.Errorf("%w: subject is not authenticated", ErrUnauthorized)

	// ErrInvalidSubject is returned by every Subject operation after Logout.
	ErrInvalidSubject = errors.New("subject has been invalidated")

	// ErrIllegalState marks wiring and programming defects. It is never
	// converted into an authentication or authorization failure.
	ErrIllegalState = errors.New("illegal state")

	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrBuilderUsed is returned by a second Builder.Build call.
	ErrBuilderUsed = errors.New("builder already used")
)

// Session errors, re-exported so callers of the root package need not
// import session.
var (
	ErrInvalidSession = session.ErrInvalidSession
	ErrUnknownSession = session.ErrUnknownSession
	ErrStoppedSession = session.ErrStoppedSession
	ErrExpiredSession = session.ErrExpiredSession
)

// AuthorizationError is returned by check methods when a permission or role
// is denied. It matches ErrUnauthorized under errors.Is.
type AuthorizationError struct {
	Principal  string
	Permission string
	Role       string
}

func (e *AuthorizationError) Error() string {
	var b strings.Builder
	b.WriteString("unauthorized: ")
	if e.Principal != "" {
		fmt.Fprintf(&b, "principal %q ", e.Principal)
	} else {
		b.WriteString("subject ")
	}
	switch {
	case e.Permission != "":
		fmt.Fprintf(&b, "lacks permission %q", e.Permission)
	case e.Role != "":
		fmt.Fprintf(&b, "lacks role %q", e.Role)
	default:
		b.WriteString("denied")
	}
	return b.String()
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}
