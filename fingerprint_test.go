package goAccount

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/MrEthical07/goAccount/password"
)

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()

	h, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestComputeFingerprintFormat(t *testing.T) {
	acc := Account{Email: "alice@example.com", PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5"}

	mac := hmac.New(sha256.New, []byte(acc.PasswordHash))
	mac.Write([]byte(acc.Email))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got := ComputeFingerprint(acc); got != want {
		t.Fatalf("ComputeFingerprint = %q, want %q", got, want)
	}
	if !FingerprintMatches(acc, want) {
		t.Fatal("expected the fingerprint to match")
	}
}

func TestFingerprintChangesWithPasswordAndEmail(t *testing.T) {
	acc := Account{Email: "alice@example.com", PasswordHash: "hash-1"}
	fp := ComputeFingerprint(acc)

	changed := acc
	changed.PasswordHash = "hash-2"
	if FingerprintMatches(changed, fp) {
		t.Fatal("a new password hash must invalidate the fingerprint")
	}

	moved := acc
	moved.Email = "alice@example.org"
	if FingerprintMatches(moved, fp) {
		t.Fatal("a new email must invalidate the fingerprint")
	}

	for _, candidate := range []string{"", "garbage", fp[:len(fp)-1]} {
		if FingerprintMatches(acc, candidate) {
			t.Fatalf("unexpected match for %q", candidate)
		}
	}
}

func TestCredentialEpoch(t *testing.T) {
	acc := Account{PasswordHash: "hash-1"}
	if CredentialEpoch(acc) != sha256.Sum256([]byte("hash-1")) {
		t.Fatal("epoch must be the SHA-256 of the password hash")
	}
	if !EpochEqual(CredentialEpoch(acc), CredentialEpoch(acc)) {
		t.Fatal("expected equal epochs")
	}
	other := Account{PasswordHash: "hash-2"}
	if EpochEqual(CredentialEpoch(acc), CredentialEpoch(other)) {
		t.Fatal("expected different epochs")
	}
}
