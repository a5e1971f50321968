package signedlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// ParamSignature is the query parameter carrying the link MAC.
	ParamSignature = "_hash"
	// ParamExpires is the query parameter carrying the unix expiry second.
	ParamExpires = "expires"

	minSecretLength = 16
)

var (
	// ErrSecretTooShort is returned by NewCodec for secrets under 16 bytes.
	ErrSecretTooShort = errors.New("signedlink: secret must be at least 16 bytes")
	// ErrInvalidURL is returned by Sign when the input cannot be parsed.
	ErrInvalidURL = errors.New("signedlink: invalid url")
)

// Codec signs and verifies self-authenticating URLs.
//
// The MAC covers the path and the canonical (key-sorted) query string,
// including the expiry. Scheme and host are carried through unchanged but are
// not authenticated, so links survive proxies that rewrite the public host.
// Codec is safe for concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec keyed by secret. The secret is copied.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}
	return &Codec{secret: append([]byte(nil), secret...)}, nil
}

// Sign returns rawURL with an expires parameter and a trailing _hash
// parameter. Any signature or expiry already present is replaced.
func (c *Codec) Sign(rawURL string, expiresAt time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidURL
	}

	values := u.Query()
	values.Del(ParamSignature)
	values.Set(ParamExpires, strconv.FormatInt(expiresAt.Unix(), 10))

	canonical := values.Encode()
	mac := c.mac(u.EscapedPath(), canonical)

	u.RawQuery = canonical + "&" + ParamSignature + "=" + mac
	return u.String(), nil
}

// Check reports whether rawURL carries a valid signature that has not
// expired at now. Malformed input yields false.
func (c *Codec) Check(rawURL string, now time.Time) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return c.check(u, now)
}

// CheckRequest is Check applied to an inbound request URL.
func (c *Codec) CheckRequest(r *http.Request, now time.Time) bool {
	if r == nil || r.URL == nil {
		return false
	}
	return c.check(r.URL, now)
}

func (c *Codec) check(u *url.URL, now time.Time) bool {
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return false
	}

	provided := values.Get(ParamSignature)
	if provided == "" {
		return false
	}
	values.Del(ParamSignature)

	expires, err := strconv.ParseInt(values.Get(ParamExpires), 10, 64)
	if err != nil {
		return false
	}

	expected := c.mac(u.EscapedPath(), values.Encode())
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return false
	}

	return now.Unix() <= expires
}

func (c *Codec) mac(path, canonicalQuery string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(path))
	h.Write([]byte{'?'})
	h.Write([]byte(canonicalQuery))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// StripSignature returns a copy of values without the signature and expiry
// parameters.
func StripSignature(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		if k == ParamSignature || k == ParamExpires {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}
