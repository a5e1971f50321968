package goAccount

import (
	"github.com/MrEthical07/goAccount/internal/security"
)

// SecurityReport summarizes the engine's protections and flags settings
// below recommended floors.
type SecurityReport = security.Report

// PasswordConfigReport holds the Argon2id parameters in a SecurityReport.
type PasswordConfigReport = security.PasswordReport

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	return security.BuildReport(security.ReportInput{
		LinkBaseURL:         cfg.Links.BaseURL,
		ResetLinkTTL:        cfg.PasswordReset.LinkTTL,
		VerificationLinkTTL: cfg.EmailVerification.LinkTTL,
		MarkerTTL:           cfg.Links.MarkerTTL,
		SessionTTL:          cfg.Session.TTL,
		SlidingExpiration:   cfg.Session.SlidingExpiration,
		RememberMeEnabled:   cfg.RememberMe.Enabled,
		RememberMeTTL:       cfg.RememberMe.TTL,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		MinPasswordLength:       cfg.Password.MinLength,
		LoginMaxAttempts:        cfg.Login.MaxAttempts,
		LoginCooldown:           cfg.Login.Cooldown,
		ResetMaxRequests:        cfg.PasswordReset.MaxRequests,
		VerificationMaxRequests: cfg.EmailVerification.MaxRequests,
		RegistrationMaxPerIP:    cfg.Registration.MaxPerIP,
		AuditEnabled:            cfg.Audit.Enabled && e.audit != nil,
		MetricsEnabled:          cfg.Metrics.Enabled,
	})
}
