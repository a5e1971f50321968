package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	markerRecordVersionV1 = 1
	defaultMarkerPrefix   = "alm"
)

// Purpose separates markers of different flows bound to the same session.
type Purpose uint8

const (
	PurposePasswordReset Purpose = iota + 1
	PurposeEmailVerification
)

func (p Purpose) String() string {
	switch p {
	case PurposePasswordReset:
		return "reset"
	case PurposeEmailVerification:
		return "verify"
	default:
		return "unknown"
	}
}

var (
	ErrMarkerNotFound         = errors.New("link marker not found")
	ErrMarkerRedisUnavailable = errors.New("link marker redis unavailable")
	ErrMarkerCorrupt          = errors.New("link marker corrupt")
)

// LinkMarker records that a browser session followed a valid signed link
// for an account. It lets follow-up requests run without the signed query
// string.
type LinkMarker struct {
	Purpose   Purpose
	AccountID string
	ExpiresAt int64
}

type LinkMarkerStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewLinkMarkerStore(redisClient redis.UniversalClient, prefix string) *LinkMarkerStore {
	if prefix == "" {
		prefix = defaultMarkerPrefix
	}
	return &LinkMarkerStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *LinkMarkerStore) key(purpose Purpose, sessionID string) string {
	return s.prefix + ":" + purpose.String() + ":" + sessionID
}

// Put binds accountID to sessionID for purpose, replacing any earlier marker.
func (s *LinkMarkerStore) Put(ctx context.Context, sessionID string, marker *LinkMarker, ttl time.Duration) error {
	encoded, err := encodeLinkMarker(marker)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(marker.Purpose, sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMarkerRedisUnavailable, err)
	}
	return nil
}

// Get returns the live marker for purpose and sessionID. Expired markers
// are reported as ErrMarkerNotFound even if Redis has not evicted them yet.
func (s *LinkMarkerStore) Get(ctx context.Context, purpose Purpose, sessionID string, now time.Time) (*LinkMarker, error) {
	data, err := s.redis.Get(ctx, s.key(purpose, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMarkerNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrMarkerRedisUnavailable, err)
	}

	marker, err := decodeLinkMarker(data)
	if err != nil {
		return nil, err
	}
	if marker.Purpose != purpose || now.Unix() > marker.ExpiresAt {
		return nil, ErrMarkerNotFound
	}
	return marker, nil
}

// Delete removes the marker. Missing markers are not an error.
func (s *LinkMarkerStore) Delete(ctx context.Context, purpose Purpose, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(purpose, sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMarkerRedisUnavailable, err)
	}
	return nil
}

// Consume deletes the marker only if it still names accountID. It returns
// ErrMarkerNotFound when the marker is gone or was rebound to another
// account by a later click in the same browser.
func (s *LinkMarkerStore) Consume(ctx context.Context, purpose Purpose, sessionID, accountID string) error {
	const maxRetries = 4
	key := s.key(purpose, sessionID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			marker, err := decodeLinkMarker(data)
			if err != nil {
				return err
			}
			if marker.AccountID != accountID {
				return ErrMarkerNotFound
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrMarkerNotFound
			case errors.Is(err, ErrMarkerNotFound), errors.Is(err, ErrMarkerCorrupt):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrMarkerRedisUnavailable, err)
			}
		}
		return nil
	}

	return ErrMarkerNotFound
}

func encodeLinkMarker(marker *LinkMarker) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(markerRecordVersionV1)
	buf.WriteByte(byte(marker.Purpose))

	if err := binary.Write(&buf, binary.BigEndian, marker.ExpiresAt); err != nil {
		return nil, err
	}

	if len(marker.AccountID) > 255 {
		return nil, errors.New("link marker account id too long")
	}
	buf.WriteByte(byte(len(marker.AccountID)))
	buf.WriteString(marker.AccountID)

	return buf.Bytes(), nil
}

func decodeLinkMarker(data []byte) (*LinkMarker, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != markerRecordVersionV1 {
		return nil, ErrMarkerCorrupt
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, ErrMarkerCorrupt
	}

	marker := &LinkMarker{Purpose: Purpose(purpose)}
	if err := binary.Read(reader, binary.BigEndian, &marker.ExpiresAt); err != nil {
		return nil, ErrMarkerCorrupt
	}

	idLen, err := reader.ReadByte()
	if err != nil {
		return nil, ErrMarkerCorrupt
	}
	accountID := make([]byte, idLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, ErrMarkerCorrupt
	}
	marker.AccountID = string(accountID)

	if reader.Len() != 0 {
		return nil, ErrMarkerCorrupt
	}
	return marker, nil
}
