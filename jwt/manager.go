package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSigningKeyLength = 32

var (
	// ErrInvalidToken is returned for any token that fails parsing or validation.
	ErrInvalidToken = errors.New("invalid remember-me token")
)

// Config configures remember-me token issuance.
type Config struct {
	TTL        time.Duration
	SigningKey []byte
	Issuer     string
	Leeway     time.Duration
	// Now is the time source for issuing and validating. Defaults to time.Now.
	Now func() time.Time
}

// Manager issues and parses HS256 remember-me tokens.
type Manager struct {
	config Config
}

// RememberClaims identifies an account and the credential epoch the token
// was issued under.
type RememberClaims struct {
	UID   string `json:"uid"`
	Epoch string `json:"ep"`
	jwt.RegisteredClaims
}

// EpochBytes decodes the epoch claim.
func (c *RememberClaims) EpochBytes() ([32]byte, error) {
	var out [32]byte
	raw, err := base64.RawURLEncoding.DecodeString(c.Epoch)
	if err != nil || len(raw) != len(out) {
		return out, ErrInvalidToken
	}
	copy(out[:], raw)
	return out, nil
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if len(cfg.SigningKey) < minSigningKeyLength {
		return nil, errors.New("signing key must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.SigningKey = append([]byte(nil), cfg.SigningKey...)

	return &Manager{config: cfg}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Create signs a token for uid under epoch and returns it with its expiry.
func (m *Manager) Create(uid string, epoch [32]byte) (string, time.Time, error) {
	if uid == "" {
		return "", time.Time{}, errors.New("uid required")
	}

	now := m.config.Now()
	expiresAt := now.Add(m.config.TTL)

	claims := RememberClaims{
		UID:   uid,
		Epoch: base64.RawURLEncoding.EncodeToString(epoch[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.SigningKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates tokenStr and returns its claims. Every failure is
// reported as ErrInvalidToken wrapping the parser's reason.
func (m *Manager) Parse(tokenStr string) (*RememberClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &RememberClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.SigningKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*RememberClaims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.EpochBytes(); err != nil {
		return nil, err
	}

	return claims, nil
}
