package flows

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// LinkDeps covers the click step shared by the reset and verification
// flows. The engine binds one instance per marker purpose.
type LinkDeps struct {
	BaseURL   string
	MarkerTTL time.Duration

	SignLink  func(string, time.Time) (string, error)
	CheckLink func(string, time.Time) bool

	PutMarker func(ctx context.Context, sessionID, accountID string, expiresAt time.Time, ttl time.Duration) error
	GetMarker func(ctx context.Context, sessionID string, now time.Time) (string, error)
	// ConsumeMarker removes the marker only while it still names accountID.
	ConsumeMarker func(ctx context.Context, sessionID, accountID string) error

	IsMarkerNotFound func(error) bool
	MapMarkerError   func(error) error
}

func (d LinkDeps) ready() bool {
	return d.SignLink != nil && d.CheckLink != nil && d.PutMarker != nil && d.GetMarker != nil && d.ConsumeMarker != nil
}

func normalizeLinkDeps(d *LinkDeps) {
	if d.IsMarkerNotFound == nil {
		d.IsMarkerNotFound = func(error) bool { return false }
	}
	if d.MapMarkerError == nil {
		d.MapMarkerError = identity
	}
}

// linkURL joins the base URL, a route prefix, and the escaped account id.
func linkURL(baseURL, route, accountID string, query url.Values) string {
	raw := strings.TrimRight(baseURL, "/") + route + url.PathEscape(accountID)
	if len(query) > 0 {
		raw += "?" + query.Encode()
	}
	return raw
}

// linkTargets reports whether rawURL points at route for accountID under
// the configured base URL. The signature covers the path, so this ties a
// verified link to one flow and one account.
func linkTargets(baseURL, route, accountID, rawURL string) bool {
	got, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	want, err := url.Parse(linkURL(baseURL, route, accountID, nil))
	if err != nil {
		return false
	}
	return got.EscapedPath() == want.EscapedPath()
}

// bindLink checks rawURL and, when it is a valid link of route for
// accountID, records that sessionID has clicked it.
func bindLink(ctx context.Context, d LinkDeps, route, sessionID, accountID, rawURL string, now time.Time) (bool, error) {
	if sessionID == "" || accountID == "" {
		return false, nil
	}
	if !d.CheckLink(rawURL, now) || !linkTargets(d.BaseURL, route, accountID, rawURL) {
		return false, nil
	}

	expiresAt := now.Add(d.MarkerTTL)
	if err := d.PutMarker(ctx, sessionID, accountID, expiresAt, d.MarkerTTL); err != nil {
		return false, d.MapMarkerError(err)
	}
	return true, nil
}

// markedAccountID returns the account bound to sessionID, or "" when no
// live marker exists.
func markedAccountID(ctx context.Context, d LinkDeps, sessionID string, now time.Time) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	accountID, err := d.GetMarker(ctx, sessionID, now)
	if err != nil {
		if d.IsMarkerNotFound(err) {
			return "", nil
		}
		return "", d.MapMarkerError(err)
	}
	return accountID, nil
}

// releaseLink consumes the marker after a completed flow. A marker that is
// already gone or was rebound by another click is left alone.
func releaseLink(ctx context.Context, d LinkDeps, sessionID, accountID string) error {
	if err := d.ConsumeMarker(ctx, sessionID, accountID); err != nil && !d.IsMarkerNotFound(err) {
		return d.MapMarkerError(err)
	}
	return nil
}
