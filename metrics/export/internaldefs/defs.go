package internaldefs

import (
	goAccount "github.com/MrEthical07/goAccount"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goAccount.MetricLoginSuccess, Name: "goaccount_login_success_total", Help: "Successful interactive logins."},
	{ID: goAccount.MetricLoginFailure, Name: "goaccount_login_failure_total", Help: "Failed login attempts."},
	{ID: goAccount.MetricLoginRateLimited, Name: "goaccount_login_rate_limited_total", Help: "Login attempts rejected by the throttle."},
	{ID: goAccount.MetricRegistrationSuccess, Name: "goaccount_registration_success_total", Help: "Created accounts."},
	{ID: goAccount.MetricRegistrationDuplicate, Name: "goaccount_registration_duplicate_total", Help: "Registrations rejected for a taken email."},
	{ID: goAccount.MetricRegistrationRateLimited, Name: "goaccount_registration_rate_limited_total", Help: "Registrations rejected by the per-IP limiter."},
	{ID: goAccount.MetricPasswordResetRequest, Name: "goaccount_password_reset_request_total", Help: "Accepted password reset requests."},
	{ID: goAccount.MetricPasswordResetRateLimited, Name: "goaccount_password_reset_rate_limited_total", Help: "Password reset requests rejected by the limiter."},
	{ID: goAccount.MetricPasswordResetLinkInvalid, Name: "goaccount_password_reset_link_invalid_total", Help: "Reset links failing signature or expiry checks."},
	{ID: goAccount.MetricPasswordResetLinkAccepted, Name: "goaccount_password_reset_link_accepted_total", Help: "Reset links bound to a browser session."},
	{ID: goAccount.MetricPasswordResetReplay, Name: "goaccount_password_reset_replay_total", Help: "Reset links presented after the password changed."},
	{ID: goAccount.MetricPasswordResetCompleted, Name: "goaccount_password_reset_completed_total", Help: "Completed password resets."},
	{ID: goAccount.MetricEmailVerificationRequest, Name: "goaccount_email_verification_request_total", Help: "Sent verification links."},
	{ID: goAccount.MetricEmailVerificationRateLimited, Name: "goaccount_email_verification_rate_limited_total", Help: "Verification requests rejected by the limiter."},
	{ID: goAccount.MetricEmailVerificationLinkInvalid, Name: "goaccount_email_verification_link_invalid_total", Help: "Verification links failing signature or expiry checks."},
	{ID: goAccount.MetricEmailVerificationLinkAccepted, Name: "goaccount_email_verification_link_accepted_total", Help: "Verification links bound to a browser session."},
	{ID: goAccount.MetricEmailVerificationReplay, Name: "goaccount_email_verification_replay_total", Help: "Verification links presented for an already verified email."},
	{ID: goAccount.MetricEmailVerificationCompleted, Name: "goaccount_email_verification_completed_total", Help: "Completed email verifications."},
	{ID: goAccount.MetricPasswordChanged, Name: "goaccount_password_changed_total", Help: "Password changes by signed-in users."},
	{ID: goAccount.MetricEmailChanged, Name: "goaccount_email_changed_total", Help: "Email address changes."},
	{ID: goAccount.MetricProfileUpdated, Name: "goaccount_profile_updated_total", Help: "Profile updates."},
	{ID: goAccount.MetricLogoutOtherDevices, Name: "goaccount_logout_other_devices_total", Help: "Logout-other-devices operations."},
	{ID: goAccount.MetricSessionCreated, Name: "goaccount_session_created_total", Help: "Authenticated sessions created."},
	{ID: goAccount.MetricSessionResolved, Name: "goaccount_session_resolved_total", Help: "Sessions resolved to an account."},
	{ID: goAccount.MetricSessionInvalidated, Name: "goaccount_session_invalidated_total", Help: "Sessions demoted for a stale credential epoch or a missing account."},
	{ID: goAccount.MetricRememberResumed, Name: "goaccount_remember_resumed_total", Help: "Sessions restored from remember-me tokens."},
	{ID: goAccount.MetricRememberRejected, Name: "goaccount_remember_rejected_total", Help: "Rejected remember-me tokens."},
	{ID: goAccount.MetricLogout, Name: "goaccount_logout_total", Help: "Ended sessions."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAccount.MetricResolveLatency, Name: "goaccount_session_resolve_latency_seconds", Help: "Session resolve latency."},
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter.
const (
	AuditDroppedName = "goaccount_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters that
// emit one instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies up to eight raw bucket counts.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
