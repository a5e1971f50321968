package goAccount

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAccount/internal/audit"
	"github.com/MrEthical07/goAccount/internal/limiters"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/internal/stores"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/password"
	"github.com/MrEthical07/goAccount/session"
	"github.com/MrEthical07/goAccount/signedlink"
	"github.com/redis/go-redis/v9"
)

// dummyPassword is hashed once at Build so logins for unknown emails spend
// the same hashing work as real ones.
const dummyPassword = "goAccount-unknown-account-placeholder"

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts AccountStore
	mailer   Mailer
	clock    Clock
	logger   *slog.Logger

	hasher PasswordHasher
	policy PasswordPolicy
	breach password.BreachChecker

	resetLimiter        RateLimiter
	verificationLimiter RateLimiter
	registrationLimiter RateLimiter

	auditSink AuditSink

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions, flashes, link markers, the
// login throttle, and the default limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithClock replaces the wall clock for link expiry, markers, sessions,
// and remember-me tokens.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithPasswordHasher replaces the Argon2id hasher built from
// Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithPasswordPolicy replaces the default length and strength policy.
func (b *Builder) WithPasswordPolicy(p PasswordPolicy) *Builder {
	b.policy = p
	return b
}

// WithBreachChecker adds a compromised-password lookup to the default
// policy. It has no effect when WithPasswordPolicy is used.
func (b *Builder) WithBreachChecker(c password.BreachChecker) *Builder {
	b.breach = c
	return b
}

func (b *Builder) WithResetLimiter(l RateLimiter) *Builder {
	b.resetLimiter = l
	return b
}

func (b *Builder) WithVerificationLimiter(l RateLimiter) *Builder {
	b.verificationLimiter = l
	return b
}

func (b *Builder) WithRegistrationLimiter(l RateLimiter) *Builder {
	b.registrationLimiter = l
	return b
}

// WithAuditSink sets the audit destination. Events are only dispatched
// when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- LINKS --------
	codec, err := signedlink.NewCodec(cfg.Links.Secret)
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	sessions := session.NewStore(
		b.redis,
		cfg.Session.RedisPrefix,
		cfg.Session.SlidingExpiration,
		cfg.Session.JitterEnabled,
		cfg.Session.JitterRange,
	).WithClock(clock.Now)

	engine := &Engine{
		config:       cloneConfig(cfg),
		clock:        clock,
		logger:       logger,
		accounts:     b.accounts,
		mailer:       b.mailer,
		links:        codec,
		markers:      stores.NewLinkMarkerStore(b.redis, cfg.Links.RedisPrefix),
		sessionStore: sessions,
		metrics:      NewMetrics(cfg.Metrics),
	}

	engine.loginLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Login.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Login.MaxAttempts,
		LoginCooldownDuration: cfg.Login.Cooldown,
	})

	engine.resetLimiter = b.resetLimiter
	if engine.resetLimiter == nil {
		engine.resetLimiter = limiters.NewFixedWindow(b.redis, limiters.FixedWindowConfig{
			Namespace: "arl:reset",
			Limit:     cfg.PasswordReset.MaxRequests,
			Window:    cfg.PasswordReset.Window,
		})
	}
	engine.verificationLimiter = b.verificationLimiter
	if engine.verificationLimiter == nil {
		engine.verificationLimiter = limiters.NewFixedWindow(b.redis, limiters.FixedWindowConfig{
			Namespace: "arl:verify",
			Limit:     cfg.EmailVerification.MaxRequests,
			Window:    cfg.EmailVerification.Window,
		})
	}
	engine.registrationLimiter = b.registrationLimiter
	if engine.registrationLimiter == nil {
		engine.registrationLimiter = limiters.NewFixedWindow(b.redis, limiters.FixedWindowConfig{
			Namespace: "arl:register",
			Limit:     cfg.Registration.MaxPerIP,
			Window:    cfg.Registration.Window,
		})
	}

	// -------- PASSWORDS --------
	engine.hasher = b.hasher
	if engine.hasher == nil {
		h, err := password.NewHasher(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		engine.hasher = h
	}
	engine.policy = b.policy
	if engine.policy == nil {
		engine.policy = password.NewPolicy(password.PolicyConfig{
			MinLength:   cfg.Password.MinLength,
			MinStrength: cfg.Password.MinStrength,
		}, b.breach)
	}
	dummy, err := engine.hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	// -------- REMEMBER ME --------
	if cfg.RememberMe.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			TTL:        cfg.RememberMe.TTL,
			SigningKey: cloneBytes(cfg.RememberMe.SigningKey),
			Issuer:     cfg.RememberMe.Issuer,
			Now:        clock.Now,
		})
		if err != nil {
			return nil, err
		}
		engine.remember = jm
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     engine.logger,
	}, b.auditSink)

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

// NewLocalRateLimiter returns an in-process token bucket limiter that
// refills one token every interval up to burst. It suits single-node
// deployments passed to WithResetLimiter and friends.
func NewLocalRateLimiter(every time.Duration, burst int, clock Clock) RateLimiter {
	var now func() time.Time
	if clock != nil {
		now = clock.Now
	}
	return limiters.NewTokenBucket(limiters.TokenBucketConfig{Every: every, Burst: burst}, now)
}
