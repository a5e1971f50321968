package flows

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// emailPattern is the HTML5 valid-email grammar.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

const (
	msgEmailBlank   = "Please enter your email."
	msgEmailInvalid = "Please enter a valid email address."
	msgEmailTaken   = "There is already an account with this email."
	msgNameBlank    = "Please enter your name."
)

type RegistrationMetrics struct {
	Success     int
	Duplicate   int
	RateLimited int
}

type RegistrationEvents struct {
	Success     string
	Duplicate   string
	RateLimited string
}

type RegistrationErrors struct {
	EngineNotReady error
	RateLimited    error
	Invalid        func([]FieldError) error
}

type RegistrationDeps struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	NormalizeEmail      func(string) string
	NewAccountID        func() (string, error)

	Accounts AccountAccess

	ConsumeLimiter  func(context.Context, string) (bool, error)
	MapLimiterError func(error) error

	SetPassword      func(*Account, string) error
	ValidatePassword func(context.Context, string) []string

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *slog.Logger

	Metrics RegistrationMetrics
	Events  RegistrationEvents
	Errors  RegistrationErrors
}

// RegistrationInput mirrors goAccount.RegistrationInput.
type RegistrationInput struct {
	Name     string
	Email    string
	Password string
}

// RunRegister validates in, applies the per-IP limiter, and creates the
// account. The returned account is unverified.
func RunRegister(ctx context.Context, in RegistrationInput, deps RegistrationDeps) (Account, error) {
	normalizeRegistrationDeps(&deps)

	if deps.Accounts.Create == nil || deps.Accounts.GetByEmail == nil || deps.SetPassword == nil || deps.NewAccountID == nil || deps.ValidatePassword == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	var fields []FieldError
	if name == "" {
		fields = append(fields, FieldError{Field: "name", Message: msgNameBlank})
	}
	emailFields, err := emailErrors(ctx, email, "", deps.Accounts, deps.NormalizeEmail)
	if err != nil {
		return Account{}, err
	}
	fields = append(fields, emailFields...)
	for _, msg := range deps.ValidatePassword(ctx, in.Password) {
		fields = append(fields, FieldError{Field: "password", Message: msg})
	}
	if len(fields) > 0 {
		return Account{}, deps.Errors.Invalid(fields)
	}

	if ip := deps.ClientIPFromContext(ctx); ip != "" && deps.ConsumeLimiter != nil {
		accepted, err := deps.ConsumeLimiter(ctx, ip)
		if err != nil {
			return Account{}, deps.MapLimiterError(err)
		}
		if !accepted {
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", "", deps.Errors.RateLimited, nil)
			return Account{}, deps.Errors.RateLimited
		}
	}

	id, err := deps.NewAccountID()
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:        id,
		Email:     email,
		Name:      name,
		CreatedAt: deps.Now(),
	}
	if err := deps.SetPassword(&account, in.Password); err != nil {
		return Account{}, err
	}

	if err := deps.Accounts.Create(ctx, account); err != nil {
		if deps.Accounts.IsExists(err) {
			deps.MetricInc(deps.Metrics.Duplicate)
			deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", "", err, nil)
			return Account{}, deps.Errors.Invalid([]FieldError{{Field: "email", Message: msgEmailTaken}})
		}
		return Account{}, err
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, account.ID, "", nil, nil)
	return account, nil
}

// emailErrors validates a submitted email. selfID names the account that
// may already own the address.
func emailErrors(ctx context.Context, email, selfID string, accounts AccountAccess, normalize func(string) string) ([]FieldError, error) {
	if email == "" {
		return []FieldError{{Field: "email", Message: msgEmailBlank}}, nil
	}
	if !ValidEmail(email) {
		return []FieldError{{Field: "email", Message: msgEmailInvalid}}, nil
	}

	existing, err := accounts.GetByEmail(ctx, normalize(email))
	switch {
	case err == nil:
		if existing.ID != selfID {
			return []FieldError{{Field: "email", Message: msgEmailTaken}}, nil
		}
		return nil, nil
	case accounts.IsNotFound(err):
		return nil, nil
	default:
		return nil, err
	}
}

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return len(s) <= 254 && emailPattern.MatchString(s)
}

func normalizeRegistrationDeps(deps *RegistrationDeps) {
	normalizeAccountAccess(&deps.Accounts)

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.NormalizeEmail == nil {
		deps.NormalizeEmail = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = identity
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Errors.Invalid == nil {
		deps.Errors.Invalid = func([]FieldError) error { return deps.Errors.EngineNotReady }
	}
	deps.Logger = defaultLogger(deps.Logger)
}
