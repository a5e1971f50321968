package password

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"
)

// Strength is a coarse entropy bucket for a candidate password.
type Strength int

const (
	StrengthVeryWeak Strength = iota
	StrengthWeak
	StrengthMedium
	StrengthStrong
	StrengthVeryStrong
)

// Violation messages returned by Policy.Validate.
const (
	MsgBlank       = "Please enter a password"
	MsgTooShort    = "Your password should be at least %d characters"
	MsgTooLong     = "Your password should be at most %d characters"
	MsgTooWeak     = "The password strength is too low. Please use a stronger password."
	MsgCompromised = "This password has been leaked in a data breach, it must not be used. Please use another password."
)

// BreachChecker reports whether a plaintext is known to be compromised.
type BreachChecker interface {
	IsCompromised(ctx context.Context, plaintext string) (bool, error)
}

// PolicyConfig controls Policy.
type PolicyConfig struct {
	MinLength int
	// MaxLength defaults to 4096.
	MaxLength   int
	MinStrength Strength
}

// Policy is the default password rule set: not blank, length bounds
// counted in runes, and a minimum estimated strength. A BreachChecker is
// consulted only when set; checker errors are ignored.
type Policy struct {
	config PolicyConfig
	breach BreachChecker
}

// NewPolicy returns a Policy for cfg. checker may be nil.
func NewPolicy(cfg PolicyConfig, checker BreachChecker) *Policy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 12
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 4096
	}
	return &Policy{config: cfg, breach: checker}
}

// Validate returns the violation messages for plaintext, or nil.
func (p *Policy) Validate(ctx context.Context, plaintext string) []string {
	if plaintext == "" {
		return []string{MsgBlank}
	}

	var violations []string
	switch n := utf8.RuneCountInString(plaintext); {
	case n < p.config.MinLength:
		violations = append(violations, fmt.Sprintf(MsgTooShort, p.config.MinLength))
	case n > p.config.MaxLength:
		violations = append(violations, fmt.Sprintf(MsgTooLong, p.config.MaxLength))
	}
	if EstimateStrength(plaintext) < p.config.MinStrength {
		violations = append(violations, MsgTooWeak)
	}
	if p.breach != nil && len(violations) == 0 {
		if leaked, err := p.breach.IsCompromised(ctx, plaintext); err == nil && leaked {
			violations = append(violations, MsgCompromised)
		}
	}
	return violations
}

// EstimateStrength buckets the estimated entropy of plaintext. The estimate
// multiplies the distinct byte count by log2 of the character pool implied by
// the classes present, and adds log2(distinct) bits for every repeated byte.
func EstimateStrength(plaintext string) Strength {
	entropy := Entropy(plaintext)
	switch {
	case entropy >= 120:
		return StrengthVeryStrong
	case entropy >= 100:
		return StrengthStrong
	case entropy >= 80:
		return StrengthMedium
	case entropy >= 60:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// Entropy returns the bit estimate used by EstimateStrength.
func Entropy(plaintext string) float64 {
	length := len(plaintext)
	if length == 0 {
		return 0
	}

	var seen [256]bool
	distinct := 0
	var control, digit, upper, lower, symbol, other int
	for i := 0; i < length; i++ {
		c := plaintext[i]
		if seen[c] {
			continue
		}
		seen[c] = true
		distinct++

		switch {
		case c < 32 || c == 127:
			control = 33
		case c >= '0' && c <= '9':
			digit = 10
		case c >= 'A' && c <= 'Z':
			upper = 26
		case c >= 'a' && c <= 'z':
			lower = 26
		case c >= 128:
			other = 128
		default:
			symbol = 33
		}
	}

	pool := control + digit + upper + lower + symbol + other
	return float64(distinct)*math.Log2(float64(pool)) + float64(length-distinct)*math.Log2(float64(distinct))
}
