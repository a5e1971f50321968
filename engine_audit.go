package goAccount

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const (
	auditEventLoginSuccess              = "login_success"
	auditEventLoginFailure              = "login_failure"
	auditEventLoginRateLimited          = "login_rate_limited"
	auditEventRegistrationSuccess       = "registration_success"
	auditEventRegistrationDuplicate     = "registration_duplicate"
	auditEventRegistrationRateLimited   = "registration_rate_limited"
	auditEventPasswordResetRequest      = "password_reset_request"
	auditEventPasswordResetLinkAccepted = "password_reset_link_accepted"
	auditEventPasswordResetLinkInvalid  = "password_reset_link_invalid"
	auditEventPasswordResetConfirm      = "password_reset_confirm"
	auditEventPasswordResetReplay       = "password_reset_replay"
	auditEventEmailVerificationRequest  = "email_verification_request"
	auditEventEmailVerificationAccepted = "email_verification_link_accepted"
	auditEventEmailVerificationInvalid  = "email_verification_link_invalid"
	auditEventEmailVerificationConfirm  = "email_verification_confirm"
	auditEventEmailVerificationReplay   = "email_verification_replay"
	auditEventPasswordChange            = "password_change"
	auditEventEmailChange               = "email_change"
	auditEventProfileUpdate             = "profile_update"
	auditEventLogoutOtherDevices        = "logout_other_devices"
	auditEventLogoutSession             = "logout_session"
	auditEventSessionInvalidated        = "session_invalidated"
	auditEventRememberResumed           = "remember_me_resumed"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrLinkInvalid        AuditErrorCode = "link_invalid"
	auditErrLinkAlreadyUsed    AuditErrorCode = "link_already_used"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		AccountID:  accountID,
		SessionRef: auditSessionRef(sessionID),
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditSessionRef lets audit readers correlate events of one session
// without being able to replay its cookie.
func auditSessionRef(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:8])
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrLinkInvalid):
		return auditErrLinkInvalid
	case errors.Is(err, ErrLinkAlreadyUsed):
		return auditErrLinkAlreadyUsed
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
