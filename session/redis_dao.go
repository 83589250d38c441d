package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "d", ARGV[2], "v", ARGV[5])
if tonumber(ARGV[4]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
if ARGV[3] ~= "1" then
  redis.call("SADD", KEYS[2], ARGV[1])
end
return 1
`

const updateSessionScript = `
local current = redis.call("HGET", KEYS[1], "v")
if not current then
  redis.call("SREM", KEYS[2], ARGV[1])
  return -1
end
if current ~= ARGV[5] then
  return 0
end
redis.call("HSET", KEYS[1], "d", ARGV[2], "v", ARGV[6])
if tonumber(ARGV[4]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
if ARGV[3] == "1" then
  redis.call("SREM", KEYS[2], ARGV[1])
else
  redis.call("SADD", KEYS[2], ARGV[1])
end
return 1
`

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var (
	createSessionLua = redis.NewScript(createSessionScript)
	updateSessionLua = redis.NewScript(updateSessionScript)
	deleteSessionLua = redis.NewScript(deleteSessionScript)
)

// RedisDAO is a Redis-backed [DAO]. Each session is one hash holding the
// CBOR-encoded record ("d") and its revision ("v"); a set holds the IDs of
// running sessions so ActiveSessions never scans the keyspace. Update is a
// compare-and-swap on the revision, so writers in other processes cannot
// overwrite each other.
//
// Attribute values round-trip through CBOR, so integer values come back as
// int64 or uint64 and structs come back as map[string]any.
type RedisDAO struct {
	redis     redis.UniversalClient
	prefix    string
	recordTTL time.Duration
	newID     IDGenerator
}

// NewRedisDAO creates a DAO under the given key prefix. recordTTL > 0 makes
// Redis evict records that were never stopped or reaped; it should be well
// above the longest session timeout.
func NewRedisDAO(client redis.UniversalClient, prefix string, recordTTL time.Duration, gen IDGenerator) *RedisDAO {
	if prefix == "" {
		prefix = "gs"
	}
	if gen == nil {
		gen = UUIDGenerator
	}
	return &RedisDAO{
		redis:     client,
		prefix:    prefix,
		recordTTL: recordTTL,
		newID:     gen,
	}
}

func (d *RedisDAO) key(id string) string {
	return d.prefix + ":s:" + id
}

func (d *RedisDAO) activeKey() string {
	return d.prefix + ":active"
}

func (d *RedisDAO) Create(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.ID == "" {
		s.ID = d.newID()
	}
	if s.ID == "" {
		return ErrIllegalState
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}

	created, err := createSessionLua.Run(
		ctx,
		d.redis,
		[]string{d.key(s.ID), d.activeKey()},
		s.ID,
		data,
		stoppedFlag(s),
		d.recordTTL.Milliseconds(),
		strconv.FormatUint(s.Version, 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if created == 0 {
		return ErrSessionIDCollision
	}
	return nil
}

func (d *RedisDAO) ReadSession(ctx context.Context, id string) (*Session, error) {
	vals, err := d.redis.HMGet(ctx, d.key(id), "d", "v").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeFields(id, vals)
}

// decodeFields turns an HMGET d v reply into a Session. A reply with no
// data field means the record does not exist.
func decodeFields(id string, vals []any) (*Session, error) {
	if len(vals) != 2 || vals[0] == nil {
		return nil, unknownSession(id)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: record %q has a non-string payload", ErrCorruptRecord, id)
	}
	rev, ok := vals[1].(string)
	if !ok {
		return nil, fmt.Errorf("%w: record %q has no revision", ErrCorruptRecord, id)
	}
	version, err := strconv.ParseUint(rev, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: record %q revision %q", ErrCorruptRecord, id, rev)
	}

	s, err := Decode([]byte(data))
	if err != nil {
		return nil, err
	}
	s.ID = id
	s.Version = version
	return s, nil
}

func (d *RedisDAO) Update(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrInvalidArgument
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}

	updated, err := updateSessionLua.Run(
		ctx,
		d.redis,
		[]string{d.key(s.ID), d.activeKey()},
		s.ID,
		data,
		stoppedFlag(s),
		d.recordTTL.Milliseconds(),
		strconv.FormatUint(s.Version, 10),
		strconv.FormatUint(s.Version+1, 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	switch updated {
	case -1:
		return unknownSession(s.ID)
	case 0:
		return fmt.Errorf("%w: %q at revision %d", ErrConcurrentUpdate, s.ID, s.Version)
	}
	s.Version++
	return nil
}

func (d *RedisDAO) Delete(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrInvalidArgument
	}

	existed, err := deleteSessionLua.Run(
		ctx,
		d.redis,
		[]string{d.key(s.ID), d.activeKey()},
		s.ID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existed == 0 {
		return unknownSession(s.ID)
	}
	return nil
}

// ActiveSessions reads the active index and fetches every member in one
// pipeline. Index members whose record vanished (TTL eviction) or is stopped
// are pruned from the index.
func (d *RedisDAO) ActiveSessions(ctx context.Context) ([]*Session, error) {
	ids, err := d.redis.SMembers(ctx, d.activeKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := d.redis.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, d.key(id), "d", "v")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	active := make([]*Session, 0, len(ids))
	stale := make([]any, 0)
	for i, cmd := range cmds {
		vals, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}

		s, decErr := decodeFields(ids[i], vals)
		if errors.Is(decErr, ErrUnknownSession) {
			stale = append(stale, ids[i])
			continue
		}
		if decErr != nil {
			return nil, decErr
		}
		if s.IsStopped() {
			stale = append(stale, ids[i])
			continue
		}
		active = append(active, s)
	}

	if len(stale) > 0 {
		if err := d.redis.SRem(ctx, d.activeKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return active, nil
}

// ActiveCount returns the size of the active index without fetching records.
func (d *RedisDAO) ActiveCount(ctx context.Context) (int, error) {
	n, err := d.redis.SCard(ctx, d.activeKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (d *RedisDAO) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := d.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func stoppedFlag(s *Session) string {
	if s.IsStopped() {
		return "1"
	}
	return "0"
}
