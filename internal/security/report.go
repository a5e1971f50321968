package security

import (
	"net/url"
	"strings"
	"time"
)

// Argon2 parameters below these floors draw a warning.
const (
	minArgon2MemoryKiB   = 19 * 1024
	minPasswordLength    = 12
	maxRememberMeTTL     = 30 * 24 * time.Hour
	maxResetLinkLifetime = 24 * time.Hour
)

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report summarizes the security posture of an engine configuration.
type Report struct {
	HTTPSLinks          bool
	ResetLinkTTL        time.Duration
	VerificationLinkTTL time.Duration
	MarkerTTL           time.Duration
	SessionTTL          time.Duration
	SlidingExpiration   bool
	RememberMeEnabled   bool
	RememberMeTTL       time.Duration
	Argon2              PasswordReport
	MinPasswordLength   int
	LoginThrottleActive bool
	RequestLimitsActive bool
	AuditEnabled        bool
	MetricsEnabled      bool
	Warnings            []string
}

type ReportInput struct {
	LinkBaseURL             string
	ResetLinkTTL            time.Duration
	VerificationLinkTTL     time.Duration
	MarkerTTL               time.Duration
	SessionTTL              time.Duration
	SlidingExpiration       bool
	RememberMeEnabled       bool
	RememberMeTTL           time.Duration
	Password                PasswordReport
	MinPasswordLength       int
	LoginMaxAttempts        int
	LoginCooldown           time.Duration
	ResetMaxRequests        int
	VerificationMaxRequests int
	RegistrationMaxPerIP    int
	AuditEnabled            bool
	MetricsEnabled          bool
}

// BuildReport derives a Report from input.
func BuildReport(input ReportInput) Report {
	httpsLinks := false
	if u, err := url.Parse(input.LinkBaseURL); err == nil {
		httpsLinks = strings.EqualFold(u.Scheme, "https")
	}

	report := Report{
		HTTPSLinks:          httpsLinks,
		ResetLinkTTL:        input.ResetLinkTTL,
		VerificationLinkTTL: input.VerificationLinkTTL,
		MarkerTTL:           input.MarkerTTL,
		SessionTTL:          input.SessionTTL,
		SlidingExpiration:   input.SlidingExpiration,
		RememberMeEnabled:   input.RememberMeEnabled,
		RememberMeTTL:       input.RememberMeTTL,
		Argon2:              input.Password,
		MinPasswordLength:   input.MinPasswordLength,
		LoginThrottleActive: input.LoginMaxAttempts > 0 && input.LoginCooldown > 0,
		RequestLimitsActive: input.ResetMaxRequests > 0 &&
			input.VerificationMaxRequests > 0 &&
			input.RegistrationMaxPerIP > 0,
		AuditEnabled:   input.AuditEnabled,
		MetricsEnabled: input.MetricsEnabled,
	}

	if !report.HTTPSLinks {
		report.Warnings = append(report.Warnings, "mailed links do not use https")
	}
	if input.Password.Memory < minArgon2MemoryKiB {
		report.Warnings = append(report.Warnings, "argon2 memory is below 19 MiB")
	}
	if input.MinPasswordLength < minPasswordLength {
		report.Warnings = append(report.Warnings, "minimum password length is below 12")
	}
	if input.ResetLinkTTL > maxResetLinkLifetime {
		report.Warnings = append(report.Warnings, "password reset links live longer than a day")
	}
	if input.RememberMeEnabled && input.RememberMeTTL > maxRememberMeTTL {
		report.Warnings = append(report.Warnings, "remember-me tokens live longer than 30 days")
	}
	if !report.LoginThrottleActive {
		report.Warnings = append(report.Warnings, "failed logins are not throttled")
	}

	return report
}
