package goAccount

import (
	"strings"
	"testing"
)

func TestIsVerifiedFollowsEmail(t *testing.T) {
	tests := []struct {
		email, verified string
		want            bool
	}{
		{"alice@example.com", "", false},
		{"alice@example.com", "alice@example.com", true},
		{"Alice@Example.com", "alice@example.COM", true},
		{"alice@example.com", "alice@example.org", false},
		{"", "", false},
	}
	for _, tc := range tests {
		acc := Account{Email: tc.email, VerifiedEmail: tc.verified}
		if got := acc.IsVerified(); got != tc.want {
			t.Fatalf("IsVerified(%q, %q) = %v, want %v", tc.email, tc.verified, got, tc.want)
		}
		if got := acc.IsVerified() == (NormalizeEmail(tc.email) == NormalizeEmail(tc.verified) && tc.verified != ""); !got {
			t.Fatalf("IsVerified disagrees with normalized comparison for %q/%q", tc.email, tc.verified)
		}
	}
}

func TestVerificationStateMachine(t *testing.T) {
	acc := Account{Email: "alice@example.com"}
	if acc.IsVerified() {
		t.Fatal("expected a new account to be unverified")
	}

	acc.MarkVerified()
	if !acc.IsVerified() || !acc.HasRole(RoleVerified) {
		t.Fatal("expected verified after MarkVerified")
	}

	acc.ChangeEmail("alice@new.example.com")
	if acc.IsVerified() || acc.HasRole(RoleVerified) {
		t.Fatal("changing to a new email must unverify")
	}

	acc.ChangeEmail(" ALICE@example.com ")
	if !acc.IsVerified() {
		t.Fatal("changing back to the verified email must restore verification")
	}
	if acc.Email != "ALICE@example.com" {
		t.Fatalf("expected original casing to be kept, got %q", acc.Email)
	}

	acc.ChangeEmail("alice@new.example.com")
	acc.MarkVerified()
	if !acc.IsVerified() || acc.VerifiedEmail != "alice@new.example.com" {
		t.Fatalf("unexpected state after re-verification: %+v", acc)
	}
}

func TestRolesAlwaysIncludeUser(t *testing.T) {
	acc := Account{Email: "a@example.com"}
	if roles := acc.Roles(); len(roles) != 1 || roles[0] != RoleUser {
		t.Fatalf("unexpected roles %v", roles)
	}
	acc.MarkVerified()
	if roles := acc.Roles(); len(roles) != 2 || !acc.HasRole(RoleUser) {
		t.Fatalf("unexpected roles %v", roles)
	}
}

func TestFirstNameAndRename(t *testing.T) {
	acc := Account{}
	if acc.FirstName() != "" {
		t.Fatal("expected empty first name")
	}
	acc.Rename("  Karen   Smith ")
	if acc.Name != "Karen   Smith" || acc.FirstName() != "Karen" {
		t.Fatalf("unexpected name %q / %q", acc.Name, acc.FirstName())
	}
}

func TestSetPasswordAdvancesEpoch(t *testing.T) {
	hasher := newTestHasher(t)
	acc := Account{Email: "alice@example.com"}

	if err := SetPassword(&acc, hasher, testPassword); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if !strings.HasPrefix(acc.PasswordHash, "$argon2id$") {
		t.Fatalf("unexpected hash %q", acc.PasswordHash)
	}
	epoch := CredentialEpoch(acc)
	fp := ComputeFingerprint(acc)

	if err := SetPassword(&acc, hasher, testPassword); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if EpochEqual(epoch, CredentialEpoch(acc)) {
		t.Fatal("re-hashing the same password must advance the epoch")
	}
	if FingerprintMatches(acc, fp) {
		t.Fatal("re-hashing the same password must retire the fingerprint")
	}
}

func TestSetPasswordRejectsEmpty(t *testing.T) {
	acc := Account{PasswordHash: "unchanged"}
	if err := SetPassword(&acc, newTestHasher(t), ""); err == nil {
		t.Fatal("expected empty password to fail")
	}
	if acc.PasswordHash != "unchanged" {
		t.Fatal("a failed SetPassword must leave the hash alone")
	}
}
