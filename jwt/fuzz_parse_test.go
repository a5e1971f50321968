package jwt

import (
	"testing"
	"time"
)

// FuzzParse feeds arbitrary strings to the remember-me parser. Anything it
// accepts must carry an account id and a well-formed epoch.
func FuzzParse(f *testing.F) {
	now := time.Unix(1_700_000_000, 0)
	mgr, err := NewManager(Config{
		TTL:        time.Hour,
		SigningKey: []byte("fuzz-signing-key-0123456789abcdef0123"),
		Issuer:     "goAccount",
		Now:        func() time.Time { return now },
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := mgr.Create("acc-1", [32]byte{1})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add(valid[:len(valid)-2])
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJhY2MtMSJ9.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.Parse(input)
		if err != nil {
			return
		}
		if claims.UID == "" || claims.Issuer != "goAccount" {
			t.Fatalf("accepted malformed claims: %+v", claims)
		}
		if _, err := claims.EpochBytes(); err != nil {
			t.Fatalf("accepted token with bad epoch: %v", err)
		}
	})
}
