package mail

import (
	"context"
	"log/slog"
	"sync"
)

// Tags used on account mail.
const (
	TagForgotPassword = "forgot-password"
	TagVerifyEmail    = "verify-email"
)

// MetadataLink is the metadata key holding the exact signed URL in a message.
const MetadataLink = "link"

// Message is an outbound email. Tag and Metadata are transport headers that
// let delivery providers and tests classify a message without parsing its
// body.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Tag      string
	Metadata map[string]string
	Text     string
}

// Link returns Metadata[MetadataLink].
func (m Message) Link() string {
	return m.Metadata[MetadataLink]
}

// Recorder keeps every sent message in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records msg.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, cloneMessage(msg))
	return nil
}

// Sent returns a copy of all recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	for i, m := range r.sent {
		out[i] = cloneMessage(m)
	}
	return out
}

// Last returns the most recent message with tag.
func (r *Recorder) Last(tag string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Tag == tag {
			return cloneMessage(r.sent[i]), true
		}
	}
	return Message{}, false
}

// Count returns the number of recorded messages with tag.
func (r *Recorder) Count(tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.sent {
		if m.Tag == tag {
			n++
		}
	}
	return n
}

// Reset drops recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// LogMailer writes message envelopes to a slog.Logger instead of delivering
// them. Links are logged only when IncludeLinks is set, for local
// development.
type LogMailer struct {
	Logger       *slog.Logger
	IncludeLinks bool
}

// Send logs msg.
func (l LogMailer) Send(ctx context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("tag", msg.Tag),
	}
	if l.IncludeLinks {
		attrs = append(attrs, slog.String("link", msg.Link()))
	}
	logger.InfoContext(ctx, "mail dispatched", attrs...)
	return nil
}

func cloneMessage(m Message) Message {
	if m.Metadata != nil {
		md := make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			md[k] = v
		}
		m.Metadata = md
	}
	return m
}
