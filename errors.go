package goAccount

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a link or marker references an account that cannot be resolved.
	ErrNotFound = errors.New("account not found")
	// ErrLinkInvalid is returned when a signed link fails signature or expiry checks.
	ErrLinkInvalid = errors.New("link invalid or expired")
	// ErrLinkAlreadyUsed is returned when a link passed signature checks but its one-time proof no longer matches.
	ErrLinkAlreadyUsed = errors.New("link already used")
	// ErrRateLimited is returned when a keyed limiter rejected the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned by Login for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by AccountStore implementations when the normalized email is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrAlreadyVerified is returned by SendVerification for verified accounts.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrUnauthorized is returned when a session or remember-me token does not authenticate an account.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrFullAuthRequired is returned when an operation needs an interactive login rather than a remembered one.
	ErrFullAuthRequired = errors.New("full authentication required")
	// ErrSessionNotFound is returned when a session id has no stored session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEngineNotReady is returned when a required dependency was not configured.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrBackendUnavailable wraps failures of Redis-backed components.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// FieldError is one form-level validation message.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects field messages in the order they were found.
// errors.Is(err, ErrValidation) holds for every *ValidationError.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Messages returns the messages recorded for field.
func (e *ValidationError) Messages(field string) []string {
	var out []string
	for _, fe := range e.Errors {
		if fe.Field == field {
			out = append(out, fe.Message)
		}
	}
	return out
}

// OrNil returns e when it holds messages, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}
