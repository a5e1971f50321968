package security

import (
	"strings"
	"testing"
	"time"
)

func strongInput() ReportInput {
	return ReportInput{
		LinkBaseURL:             "https://accounts.example.com",
		ResetLinkTTL:            time.Hour,
		VerificationLinkTTL:     24 * time.Hour,
		MarkerTTL:               15 * time.Minute,
		SessionTTL:              24 * time.Hour,
		RememberMeEnabled:       true,
		RememberMeTTL:           7 * 24 * time.Hour,
		Password:                PasswordReport{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		MinPasswordLength:       12,
		LoginMaxAttempts:        5,
		LoginCooldown:           15 * time.Minute,
		ResetMaxRequests:        1,
		VerificationMaxRequests: 1,
		RegistrationMaxPerIP:    3,
	}
}

func TestBuildReportStrongConfig(t *testing.T) {
	report := BuildReport(strongInput())
	if len(report.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", report.Warnings)
	}
	if !report.HTTPSLinks || !report.LoginThrottleActive || !report.RequestLimitsActive {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestBuildReportWarnings(t *testing.T) {
	in := strongInput()
	in.LinkBaseURL = "http://localhost:8080"
	in.Password.Memory = 8 * 1024
	in.MinPasswordLength = 8
	in.ResetLinkTTL = 48 * time.Hour
	in.RememberMeTTL = 90 * 24 * time.Hour
	in.LoginMaxAttempts = 0
	in.RegistrationMaxPerIP = 0

	report := BuildReport(in)
	if report.HTTPSLinks || report.LoginThrottleActive || report.RequestLimitsActive {
		t.Fatalf("unexpected flags: %+v", report)
	}

	want := []string{"https", "argon2", "password length", "reset links", "remember-me", "throttled"}
	if len(report.Warnings) != len(want) {
		t.Fatalf("expected %d warnings, got %v", len(want), report.Warnings)
	}
	for i, fragment := range want {
		if !strings.Contains(report.Warnings[i], fragment) {
			t.Fatalf("warning %d = %q, want it to mention %q", i, report.Warnings[i], fragment)
		}
	}

	in.RememberMeEnabled = false
	for _, w := range BuildReport(in).Warnings {
		if strings.Contains(w, "remember-me") {
			t.Fatal("disabled remember-me must not warn")
		}
	}
}
