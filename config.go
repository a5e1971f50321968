package goAccount

import (
	"errors"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/password"
)

// Config holds every engine setting. Start from DefaultConfig and override
// the fields you need.
type Config struct {
	Links             LinksConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Registration      RegistrationConfig
	Login             LoginConfig
	Session           SessionConfig
	RememberMe        RememberMeConfig
	Password          PasswordConfig
	Metrics           MetricsConfig
	Audit             AuditConfig
}

/*
====================================
LINKS CONFIG
====================================
*/

// LinksConfig controls signed link generation and the browser markers that
// bind a clicked link to the session that clicked it.
type LinksConfig struct {
	// BaseURL is the absolute origin links point at, e.g. https://example.com.
	BaseURL string
	// Secret keys the link MAC. At least 16 bytes.
	Secret []byte
	// MarkerTTL bounds how long a clicked link stays bound to a session.
	MarkerTTL   time.Duration
	RedisPrefix string
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls the forgot-password flow.
type PasswordResetConfig struct {
	LinkTTL time.Duration
	// MaxRequests per Window, keyed by normalized email.
	MaxRequests int
	Window      time.Duration
}

/*
====================================
EMAIL VERIFICATION CONFIG
====================================
*/

// EmailVerificationConfig controls verification mail.
type EmailVerificationConfig struct {
	LinkTTL     time.Duration
	MaxRequests int
	Window      time.Duration
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig throttles account creation per client IP.
type RegistrationConfig struct {
	MaxPerIP int
	Window   time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig throttles failed logins.
type LoginConfig struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls browser sessions stored in Redis.
type SessionConfig struct {
	RedisPrefix       string
	TTL               time.Duration
	SlidingExpiration bool
	JitterEnabled     bool
	JitterRange       time.Duration
	FlashTTL          time.Duration
}

/*
====================================
REMEMBER ME CONFIG
====================================
*/

// RememberMeConfig controls persistent login tokens.
type RememberMeConfig struct {
	Enabled    bool
	TTL        time.Duration
	SigningKey []byte
	Issuer     string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds hashing cost and the default policy thresholds.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength   int
	MinStrength password.Strength
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request when the
	// buffer is full.
	DropIfFull bool
}

// DefaultConfig returns the production defaults. Links.Secret and
// RememberMe.SigningKey have no default and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	hashing := password.DefaultConfig()
	return Config{
		Links: LinksConfig{
			BaseURL:     "http://localhost:8080",
			MarkerTTL:   15 * time.Minute,
			RedisPrefix: "alm",
		},
		PasswordReset: PasswordResetConfig{
			LinkTTL:     time.Hour,
			MaxRequests: 1,
			Window:      15 * time.Minute,
		},
		EmailVerification: EmailVerificationConfig{
			LinkTTL:     24 * time.Hour,
			MaxRequests: 1,
			Window:      15 * time.Minute,
		},
		Registration: RegistrationConfig{
			MaxPerIP: 3,
			Window:   time.Hour,
		},
		Login: LoginConfig{
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: true,
		},
		Session: SessionConfig{
			RedisPrefix:       "as",
			TTL:               24 * time.Hour,
			SlidingExpiration: true,
			JitterEnabled:     true,
			JitterRange:       30 * time.Second,
			FlashTTL:          10 * time.Minute,
		},
		RememberMe: RememberMeConfig{
			Enabled: true,
			TTL:     7 * 24 * time.Hour,
			Issuer:  "goAccount",
		},
		Password: PasswordConfig{
			Memory:      hashing.Memory,
			Time:        hashing.Time,
			Parallelism: hashing.Parallelism,
			SaltLength:  hashing.SaltLength,
			KeyLength:   hashing.KeyLength,
			MinLength:   12,
			MinStrength: password.StrengthMedium,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Links.Secret = cloneBytes(cfg.Links.Secret)
	out.RememberMe.SigningKey = cloneBytes(cfg.RememberMe.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Links
	if len(c.Links.Secret) < 16 {
		return errors.New("Links Secret must be at least 16 bytes")
	}
	u, err := url.Parse(c.Links.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Links BaseURL must be an absolute URL")
	}
	if c.Links.MarkerTTL <= 0 {
		return errors.New("Links MarkerTTL must be > 0")
	}
	if strings.TrimSpace(c.Links.RedisPrefix) == "" {
		return errors.New("Links RedisPrefix must not be empty")
	}

	// Password reset
	if c.PasswordReset.LinkTTL <= 0 {
		return errors.New("PasswordReset LinkTTL must be > 0")
	}
	if c.PasswordReset.MaxRequests <= 0 || c.PasswordReset.Window <= 0 {
		return errors.New("PasswordReset MaxRequests and Window must be > 0")
	}

	// Email verification
	if c.EmailVerification.LinkTTL <= 0 {
		return errors.New("EmailVerification LinkTTL must be > 0")
	}
	if c.EmailVerification.MaxRequests <= 0 || c.EmailVerification.Window <= 0 {
		return errors.New("EmailVerification MaxRequests and Window must be > 0")
	}

	// Registration
	if c.Registration.MaxPerIP <= 0 || c.Registration.Window <= 0 {
		return errors.New("Registration MaxPerIP and Window must be > 0")
	}

	// Login
	if c.Login.MaxAttempts <= 0 {
		return errors.New("Login MaxAttempts must be > 0")
	}
	if c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.JitterRange < 0 {
		return errors.New("Session JitterRange must be >= 0")
	}
	if c.Session.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		return errors.New("Session JitterRange is too large")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		return errors.New("Session JitterRange must be > 0 when JitterEnabled is true")
	}
	if c.Session.FlashTTL <= 0 {
		return errors.New("Session FlashTTL must be > 0")
	}

	// Remember me
	if c.RememberMe.Enabled {
		if c.RememberMe.TTL <= 0 {
			return errors.New("RememberMe TTL must be > 0")
		}
		if len(c.RememberMe.SigningKey) < 32 {
			return errors.New("RememberMe SigningKey must be at least 32 bytes")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MinStrength < password.StrengthVeryWeak || c.Password.MinStrength > password.StrengthVeryStrong {
		return errors.New("Password MinStrength is invalid")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Enabled is true")
	}

	return nil
}
