package session

// Session is a browser session. An empty AccountID means anonymous.
//
// Epoch is the account's credential epoch at the time the session was
// authenticated; the engine drops the authentication once it no longer
// matches the account.
type Session struct {
	SessionID string
	AccountID string

	Epoch      [32]byte
	Remembered bool

	CreatedAt int64
	ExpiresAt int64
}

// Anonymous reports whether no account is attached.
func (s *Session) Anonymous() bool {
	return s.AccountID == ""
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Type    string
	Message string
}

// Flash types.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashNote    = "note"
)
