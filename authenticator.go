package goShield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Verifier performs the realm-specific credential check. It returns the
// account's AuthenticationInfo or an error; returning (nil, nil) violates
// the contract and is treated as a failed authentication.
type Verifier interface {
	Verify(ctx context.Context, token AuthenticationToken) (*AuthenticationInfo, error)
}

// VerifierFunc adapts a function into a Verifier.
type VerifierFunc func(ctx context.Context, token AuthenticationToken) (*AuthenticationInfo, error)

func (f VerifierFunc) Verify(ctx context.Context, token AuthenticationToken) (*AuthenticationInfo, error) {
	return f(ctx, token)
}

// RealmVerifier tries each realm that supports the token, in order, and
// returns the first success.
type RealmVerifier struct {
	realms []Realm
}

func NewRealmVerifier(realms ...Realm) *RealmVerifier {
	return &RealmVerifier{realms: append([]Realm(nil), realms...)}
}

func (v *RealmVerifier) Verify(ctx context.Context, token AuthenticationToken) (*AuthenticationInfo, error) {
	var errs []error
	attempted := 0
	for _, realm := range v.realms {
		if ts, ok := realm.(TokenSupporter); ok && !ts.Supports(token) {
			continue
		}
		attempted++

		info, err := realm.AuthenticationInfo(ctx, token)
		if err != nil {
			errs = append(errs, fmt.Errorf("realm %q: %w", realm.Name(), err))
			continue
		}
		if info == nil {
			errs = append(errs, fmt.Errorf("realm %q: %w", realm.Name(), ErrUnknownAccount))
			continue
		}
		if info.RealmName == "" {
			info.RealmName = realm.Name()
		}
		return info, nil
	}

	if attempted == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, ErrUnsupportedToken)
	}
	return nil, fmt.Errorf("%w: %w", ErrAuthentication, errors.Join(errs...))
}

// IdentityFactory turns verified account info into an Identity.
type IdentityFactory func(info *AuthenticationInfo) *Identity

// AttemptLimiter throttles repeated failed logins. Check returns an error
// matching ErrLoginThrottled when the caller must wait.
type AttemptLimiter interface {
	Check(ctx context.Context, principal, host string) error
	Fail(ctx context.Context, principal, host string) error
	Reset(ctx context.Context, principal, host string) error
}

// AuthenticatorOptions carries the Authenticator's optional collaborators.
type AuthenticatorOptions struct {
	Events   EventEmitter
	Logger   *slog.Logger
	Metrics  *Metrics
	Identity IdentityFactory
	Clock    func() time.Time
	Limiter  AttemptLimiter
}

// Authenticator wraps a Verifier in the fixed authentication sequence:
// verify, record failures, build the identity, bind it to the call scope,
// and record the success.
type Authenticator struct {
	verifier Verifier
	events   EventEmitter
	logger   *slog.Logger
	metrics  *Metrics
	identity IdentityFactory
	limiter  AttemptLimiter
	now      func() time.Time
}

// NewAuthenticator returns an Authenticator over verifier.
func NewAuthenticator(verifier Verifier, opts AuthenticatorOptions) (*Authenticator, error) {
	if verifier == nil {
		return nil, fmt.Errorf("%w: authenticator requires a verifier", ErrIllegalState)
	}
	a := &Authenticator{
		verifier: verifier,
		events:   opts.Events,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		identity: opts.Identity,
		limiter:  opts.Limiter,
		now:      opts.Clock,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.identity == nil {
		a.identity = NewIdentity
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Authenticate verifies token. Failures match ErrAuthentication, except
// wiring defects, which match ErrIllegalState and are returned unchanged.
// On success the identity is bound to the Scope carried by ctx, if any.
func (a *Authenticator) Authenticate(ctx context.Context, token AuthenticationToken) (*Identity, error) {
	if token == nil {
		return nil, a.fail(ctx, nil, fmt.Errorf("%w: nil authentication token", ErrAuthentication))
	}

	host := tokenHost(ctx, token)
	if a.limiter != nil {
		if err := a.limiter.Check(ctx, token.Principal(), host); err != nil {
			if errors.Is(err, ErrLoginThrottled) {
				a.metrics.Inc(MetricLoginThrottled)
			} else {
				err = fmt.Errorf("%w: attempt limiter: %w", ErrAuthentication, err)
			}
			return nil, a.fail(ctx, token, err)
		}
	}

	info, err := a.verifier.Verify(ctx, token)
	if err == nil && info == nil {
		err = fmt.Errorf("%w: no account information for %q", ErrAuthentication, token.Principal())
	}
	if err != nil {
		if errors.Is(err, ErrIllegalState) {
			return nil, a.fail(ctx, token, err)
		}
		if !errors.Is(err, ErrAuthentication) {
			err = fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		if a.limiter != nil {
			if lerr := a.limiter.Fail(ctx, token.Principal(), host); lerr != nil {
				a.logger.Warn("attempt limiter failure not recorded", "principal", token.Principal(), "error", lerr)
			}
		}
		return nil, a.fail(ctx, token, err)
	}

	id := a.identity(info)
	if id == nil {
		return nil, fmt.Errorf("%w: no identity built for %q", ErrIllegalState, token.Principal())
	}
	if id.PrincipalCollection().IsEmpty() {
		return nil, fmt.Errorf("%w: realm %q returned no principals for %q", ErrIllegalState, info.RealmName, token.Principal())
	}

	if a.limiter != nil {
		if lerr := a.limiter.Reset(ctx, token.Principal(), host); lerr != nil {
			a.logger.Warn("attempt limiter reset failed", "principal", token.Principal(), "error", lerr)
		}
	}

	ScopeFromContext(ctx).BindIdentity(id)

	a.metrics.Inc(MetricLoginSuccess)
	a.logger.Debug("authentication succeeded", "principal", id.PrimaryPrincipal(), "realm", info.RealmName)
	a.emit(ctx, Event{
		Type:      EventAuthcSuccess,
		Principal: id.PrimaryPrincipal(),
		Host:      host,
		Success:   true,
		Metadata:  map[string]string{"realm": info.RealmName},
	})

	return id, nil
}

func (a *Authenticator) fail(ctx context.Context, token AuthenticationToken, err error) error {
	principal := ""
	if token != nil {
		principal = token.Principal()
	}

	a.metrics.Inc(MetricLoginFailure)
	a.logger.Info("authentication failed", "principal", principal, "error", err)
	a.emit(ctx, Event{
		Type:      EventAuthcFailure,
		Principal: principal,
		Host:      tokenHost(ctx, token),
		Success:   false,
		Error:     err.Error(),
	})
	return err
}

func (a *Authenticator) emit(ctx context.Context, event Event) {
	if a.events == nil {
		return
	}
	event.Timestamp = a.now()
	a.events.Emit(ctx, event)
}

func tokenHost(ctx context.Context, token AuthenticationToken) string {
	if ht, ok := token.(HostAuthenticationToken); ok && ht.Host() != "" {
		return ht.Host()
	}
	return clientHostFromContext(ctx)
}
