package session

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const recordVersionCurrent = 1

// ErrCorruptRecord is returned when a stored blob cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("session: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Attribute values decode into any; keep maps JSON-compatible.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("session: CBOR decoder initialization failed: " + err.Error())
	}
}

// record is the persisted layout. Field keys are integers so renames never
// break stored data; new fields get new keys.
type record struct {
	Version    uint8          `cbor:"1,keyasint"`
	ID         string         `cbor:"2,keyasint"`
	Start      int64          `cbor:"3,keyasint"`
	LastAccess int64          `cbor:"4,keyasint"`
	Stop       int64          `cbor:"5,keyasint,omitempty"`
	Timeout    int64          `cbor:"6,keyasint"`
	Host       string         `cbor:"7,keyasint,omitempty"`
	Attributes map[string]any `cbor:"8,keyasint,omitempty"`
	Expired    bool           `cbor:"9,keyasint,omitempty"`
}

// Encode serializes s for persistent DAOs. Timestamps are stored as Unix
// nanoseconds.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, ErrInvalidArgument
	}

	rec := record{
		Version:    recordVersionCurrent,
		ID:         s.ID,
		Start:      unixNano(s.StartTimestamp),
		LastAccess: unixNano(s.LastAccessTime),
		Stop:       unixNano(s.StopTimestamp),
		Timeout:    int64(s.Timeout),
		Host:       s.Host,
		Attributes: s.Attributes,
		Expired:    s.Expired,
	}

	data, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session %q: %w", s.ID, err)
	}
	return data, nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Session, error) {
	var rec record
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	if rec.Version == 0 || rec.Version > recordVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, rec.Version)
	}

	return &Session{
		ID:             rec.ID,
		StartTimestamp: fromUnixNano(rec.Start),
		LastAccessTime: fromUnixNano(rec.LastAccess),
		StopTimestamp:  fromUnixNano(rec.Stop),
		Timeout:        time.Duration(rec.Timeout),
		Host:           rec.Host,
		Attributes:     rec.Attributes,
		Expired:        rec.Expired,
	}, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
