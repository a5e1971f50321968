package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"time"
)

// SessionID is an opaque 128-bit browser session identifier.
type SessionID [16]byte

// NewSessionID draws a SessionID from crypto/rand.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the unpadded base64url form produced by String.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// ValidSessionID reports whether s parses as a SessionID.
func ValidSessionID(s string) bool {
	_, err := ParseSessionID(s)
	return err == nil
}

// RandomDuration returns a uniformly random duration in [min, max].
func RandomDuration(min, max time.Duration) (time.Duration, error) {
	if max <= min {
		return min, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)+1))
	if err != nil {
		return 0, err
	}
	return min + time.Duration(n.Int64()), nil
}
