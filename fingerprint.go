package goAccount

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// ComputeFingerprint returns the single-use proof embedded in password reset
// links: base64(HMAC-SHA256(key=PasswordHash, msg=Email)). Any password
// change yields a different value, which is what retires issued links.
func ComputeFingerprint(a Account) string {
	mac := hmac.New(sha256.New, []byte(a.PasswordHash))
	mac.Write([]byte(a.Email))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// FingerprintMatches compares candidate to the account's current fingerprint
// in constant time.
func FingerprintMatches(a Account, candidate string) bool {
	return hmac.Equal([]byte(ComputeFingerprint(a)), []byte(candidate))
}

// CredentialEpoch identifies the account's current password hash. Sessions
// and remember-me tokens record it when issued and are honored only while it
// is unchanged.
func CredentialEpoch(a Account) [32]byte {
	return sha256.Sum256([]byte(a.PasswordHash))
}

// EpochEqual compares two credential epochs in constant time.
func EpochEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
