package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned when no live session exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const minSlidingTTL = time.Second

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
if ARGV[1] ~= "" then
  redis.call("SREM", KEYS[2], ARGV[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store with absolute expiry, optional
// sliding renewal, a per-account session index, and flash message lists.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	sliding       bool
	jitterEnabled bool
	jitterRange   time.Duration
	now           func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace; sliding, jitterEnabled, and
// jitterRange control renewal on read.
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	sliding bool,
	jitterEnabled bool,
	jitterRange time.Duration,
) *Store {
	return &Store{
		redis:         redis,
		prefix:        prefix,
		sliding:       sliding,
		jitterEnabled: jitterEnabled,
		jitterRange:   jitterRange,
		now:           time.Now,
	}
}

// WithClock makes the store evaluate stored expiry against now.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + "u:" + accountID
}

func (s *Store) flashKey(sessionID string) string {
	return s.prefix + "f:" + sessionID
}

// Save persists sess with the given TTL and indexes it under its account.
//
//	Performance: 1 MULTI with SET + SADD + EXPIRE.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		if sess.AccountID != "" {
			accountKey := s.accountKey(sess.AccountID)
			pipe.SAdd(ctx, accountKey, sess.SessionID)
			pipe.Expire(ctx, accountKey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session. Sessions past their absolute lifetime are
// deleted and reported as ErrSessionNotFound. With sliding expiration the
// Redis TTL is renewed up to the remaining absolute lifetime.
//
//	Performance: 1 GET, plus 1 EXPIRE when sliding.
func (s *Store) Get(ctx context.Context, sessionID string, ttl time.Duration) (*Session, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	remainingAbsolute := s.remainingAbsoluteTTL(sess, ttl, s.now())
	if remainingAbsolute <= 0 {
		if err := s.deleteSessionAndIndex(ctx, sess.AccountID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	if s.sliding {
		nextTTL, err := s.nextSlidingTTL(remainingAbsolute)
		if err != nil {
			return nil, err
		}

		if err := s.redis.Expire(ctx, key, nextTTL).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sess, nil
}

// Peek reads a session without renewing or deleting it. Sessions past
// their stored expiry are reported as ErrSessionNotFound.
func (s *Store) Peek(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	if !s.now().Before(time.Unix(sess.ExpiresAt, 0)) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session, its index entry, and its flashes. Deleting a
// missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var accountID string
	if sess, err := Decode(data); err == nil {
		accountID = sess.AccountID
	}

	if err := s.deleteSessionAndIndex(ctx, accountID, sessionID); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, s.flashKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForAccount removes every indexed session of accountID except
// keepSessionID, and returns how many were deleted.
//
// The read of the index and the deletes are separate round trips, so a
// session saved in between survives this call. Such a session still fails
// the engine's credential epoch check.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID, keepSessionID string) (int, error) {
	accountKey := s.accountKey(accountID)

	sessionIDs, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	victims := make([]string, 0, len(sessionIDs))
	keys := make([]string, 0, len(sessionIDs)*2)
	for _, id := range sessionIDs {
		if id == keepSessionID {
			continue
		}
		victims = append(victims, id)
		keys = append(keys, s.key(id), s.flashKey(id))
	}
	if len(victims) == 0 {
		return 0, nil
	}

	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, keys...)
		members := make([]interface{}, len(victims))
		for i, id := range victims {
			members[i] = id
		}
		pipe.SRem(ctx, accountKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// DEL counts flash lists too; report sessions only.
	deleted := len(victims)
	if n := int(delCmd.Val()); n < deleted {
		deleted = n
	}
	return deleted, nil
}

// SessionIDs returns the indexed session ids of accountID.
func (s *Store) SessionIDs(ctx context.Context, accountID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// PushFlash appends a flash message to the session's list.
func (s *Store) PushFlash(ctx context.Context, sessionID string, flash Flash, ttl time.Duration) error {
	key := s.flashKey(sessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, encodeFlash(flash))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// PopFlashes returns and clears the session's flash messages in insertion
// order.
func (s *Store) PopFlashes(ctx context.Context, sessionID string) ([]Flash, error) {
	key := s.flashKey(sessionID)

	var rangeCmd *redis.StringSliceCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	raw := rangeCmd.Val()
	flashes := make([]Flash, 0, len(raw))
	for _, item := range raw {
		flashes = append(flashes, decodeFlash(item))
	}
	return flashes, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func encodeFlash(f Flash) string {
	return f.Type + "\x00" + f.Message
}

func decodeFlash(raw string) Flash {
	typ, msg, ok := strings.Cut(raw, "\x00")
	if !ok {
		return Flash{Type: FlashNote, Message: raw}
	}
	return Flash{Type: typ, Message: msg}
}

func (s *Store) remainingAbsoluteTTL(sess *Session, absoluteLifetime time.Duration, now time.Time) time.Duration {
	storedExpiry := time.Unix(sess.ExpiresAt, 0)
	if absoluteLifetime <= 0 {
		return storedExpiry.Sub(now)
	}

	configCap := time.Unix(sess.CreatedAt, 0).Add(absoluteLifetime)
	if configCap.Before(storedExpiry) {
		return configCap.Sub(now)
	}

	return storedExpiry.Sub(now)
}

func (s *Store) nextSlidingTTL(remainingAbsolute time.Duration) (time.Duration, error) {
	nextTTL := remainingAbsolute

	if s.jitterEnabled && s.jitterRange > 0 {
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if nextTTL > remainingAbsolute {
		nextTTL = remainingAbsolute
	}

	minTTL := minSlidingTTL
	if remainingAbsolute < minTTL {
		minTTL = remainingAbsolute
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}

	return nextTTL, nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, accountID, sessionID string) error {
	keys := []string{s.key(sessionID), s.accountKey(accountID)}
	member := ""
	if accountID != "" {
		member = sessionID
	}

	if _, err := deleteSessionLua.Run(ctx, s.redis, keys, member).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
