package goShield

import (
	"context"
	"io"

	"github.com/MrEthical07/goShield/internal/events"
)

// AuthenticationToken is a principal claim plus its credential as submitted
// by a caller. Credentials are opaque bytes; goShield never interprets them.
type AuthenticationToken interface {
	Principal() string
	Credentials() []byte
}

// HostAuthenticationToken is a token that carries the caller's host.
type HostAuthenticationToken interface {
	AuthenticationToken
	Host() string
}

// UsernamePasswordToken is the stock token: a username and a secret. It is
// immutable once built.
type UsernamePasswordToken struct {
	username string
	password []byte
	host     string
}

// NewUsernamePasswordToken copies password into a new token.
func NewUsernamePasswordToken(username string, password []byte, host string) UsernamePasswordToken {
	return UsernamePasswordToken{
		username: username,
		password: append([]byte(nil), password...),
		host:     host,
	}
}

func (t UsernamePasswordToken) Principal() string { return t.username }

// Credentials returns a copy of the password.
func (t UsernamePasswordToken) Credentials() []byte {
	return append([]byte(nil), t.password...)
}

func (t UsernamePasswordToken) Host() string { return t.host }

// AuthenticationInfo is what a realm knows about an account: its principals
// and the credentials it considers authoritative.
type AuthenticationInfo struct {
	Principals  PrincipalCollection
	Credentials []byte
	RealmName   string
}

// Identity is the authorization context produced by a successful
// authentication. It implements authz.Context.
type Identity struct {
	principals PrincipalCollection
	realm      string
}

// NewIdentity builds the identity for info. It returns nil for a nil info.
func NewIdentity(info *AuthenticationInfo) *Identity {
	if info == nil {
		return nil
	}
	return &Identity{principals: info.Principals, realm: info.RealmName}
}

func (i *Identity) PrincipalCollection() PrincipalCollection {
	if i == nil {
		return PrincipalCollection{}
	}
	return i.principals
}

func (i *Identity) Principals() []string {
	return i.PrincipalCollection().Slice()
}

func (i *Identity) PrimaryPrincipal() string {
	return i.PrincipalCollection().Primary()
}

// RealmName is the realm that authenticated this identity.
func (i *Identity) RealmName() string {
	if i == nil {
		return ""
	}
	return i.realm
}

// Cache memoizes realm lookups. A miss is (nil, false, nil). Callers must
// treat errors as a miss and compute directly.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Put(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

// Event type names.
const (
	EventAuthcSuccess  = "authc.success"
	EventAuthcFailure  = "authc.failure"
	EventLogout        = "logout"
	EventSessionStart  = "session.start"
	EventSessionStop   = "session.stop"
	EventSessionExpire = "session.expire"
)

// Event is a structured security event.
type Event = events.Event

// EventSink receives events. Its errors are logged and counted, never returned to callers.
type EventSink = events.Sink

// EventSinkFunc adapts a function into an EventSink.
type EventSinkFunc = events.SinkFunc

// MultiSink fans events out to several sinks.
type MultiSink = events.MultiSink

// NoOpSink discards every event.
type NoOpSink = events.NoOpSink

// ChannelSink is a buffered channel-based EventSink.
type ChannelSink = events.ChannelSink

// JSONWriterSink writes one JSON event per line to an io.Writer.
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}

// EventEmitter is the emitting side of an event pipeline.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}
