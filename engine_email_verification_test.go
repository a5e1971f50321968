package goAccount

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/mail"
)

func TestRegisterAndVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc, err := env.engine.Register(ctx, RegistrationInput{Name: "Karen Smith", Email: "ksmith@example.com", Password: "super s3cure password"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if acc.IsVerified() || acc.HasRole(RoleVerified) {
		t.Fatal("new accounts must be unverified")
	}

	if err := env.engine.SendVerification(ctx, acc); err != nil {
		t.Fatalf("SendVerification failed: %v", err)
	}
	msg, ok := env.mail.Last(mail.TagVerifyEmail)
	if !ok || msg.To != "ksmith@example.com" || msg.Subject != "Email Verification" {
		t.Fatalf("unexpected verification mail: %+v", msg)
	}
	u, err := url.Parse(msg.Link())
	if err != nil || u.Path != "/verify-email/"+acc.ID {
		t.Fatalf("unexpected verification link %q", msg.Link())
	}
	if want := env.clock.Now().Add(24 * time.Hour).Unix(); u.Query().Get("expires") != itoa64(want) {
		t.Fatalf("expected expiry %d, got %s", want, u.Query().Get("expires"))
	}

	sid := env.anonymous(t)
	if err := env.engine.AcceptVerificationLink(ctx, sid, acc.ID, msg.Link()); err != nil {
		t.Fatalf("AcceptVerificationLink failed: %v", err)
	}
	verified, err := env.engine.CompleteVerification(ctx, sid)
	if err != nil {
		t.Fatalf("CompleteVerification failed: %v", err)
	}
	if !verified.IsVerified() || !verified.HasRole(RoleVerified) {
		t.Fatalf("expected verified account, got %+v", verified)
	}
	if stored := env.store.get(t, acc.ID); !stored.IsVerified() {
		t.Fatal("expected verification to be saved")
	}
}

func TestSendVerificationAlreadyVerified(t *testing.T) {
	env := newTestEnv(t)
	acc := env.seedAccount(t, "acc-1", "alice@example.com", true)

	if err := env.engine.SendVerification(context.Background(), acc); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if n := env.mail.Count(mail.TagVerifyEmail); n != 0 {
		t.Fatalf("expected no mail, got %d", n)
	}
}

func TestSendVerificationRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.seedAccount(t, "acc-1", "alice@example.com", false)

	if err := env.engine.SendVerification(ctx, acc); err != nil {
		t.Fatalf("first SendVerification failed: %v", err)
	}
	if err := env.engine.SendVerification(ctx, acc); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n := env.mail.Count(mail.TagVerifyEmail); n != 1 {
		t.Fatalf("expected one mail, got %d", n)
	}

	env.mr.FastForward(16 * time.Minute)
	if err := env.engine.SendVerification(ctx, acc); err != nil {
		t.Fatalf("SendVerification after the window failed: %v", err)
	}
}

func TestVerificationLinkAlreadyUsed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.seedAccount(t, "acc-1", "alice@example.com", false)

	if err := env.engine.SendVerification(ctx, acc); err != nil {
		t.Fatalf("SendVerification failed: %v", err)
	}
	link := env.lastLink(t, mail.TagVerifyEmail)

	sid := env.anonymous(t)
	if err := env.engine.AcceptVerificationLink(ctx, sid, "acc-1", link); err != nil {
		t.Fatalf("AcceptVerificationLink failed: %v", err)
	}
	if _, err := env.engine.CompleteVerification(ctx, sid); err != nil {
		t.Fatalf("CompleteVerification failed: %v", err)
	}

	if _, err := env.engine.CompleteVerification(ctx, sid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the marker to be consumed, got %v", err)
	}
	if err := env.engine.AcceptVerificationLink(ctx, sid, "acc-1", link); err != nil {
		t.Fatalf("AcceptVerificationLink on replay failed: %v", err)
	}
	if _, err := env.engine.CompleteVerification(ctx, sid); !errors.Is(err, ErrLinkAlreadyUsed) {
		t.Fatalf("expected ErrLinkAlreadyUsed, got %v", err)
	}
}

func TestVerificationLinkExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.seedAccount(t, "acc-1", "alice@example.com", false)

	if err := env.engine.SendVerification(ctx, acc); err != nil {
		t.Fatalf("SendVerification failed: %v", err)
	}
	link := env.lastLink(t, mail.TagVerifyEmail)

	env.clock.Advance(25 * time.Hour)
	if err := env.engine.AcceptVerificationLink(ctx, env.anonymous(t), "acc-1", link); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("expected ErrLinkInvalid, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricEmailVerificationLinkInvalid]; got != 1 {
		t.Fatalf("expected 1 invalid link count, got %d", got)
	}
}

func TestCompleteVerificationUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.seedAccount(t, "acc-1", "alice@example.com", false)

	if err := env.engine.SendVerification(ctx, acc); err != nil {
		t.Fatalf("SendVerification failed: %v", err)
	}
	link := env.lastLink(t, mail.TagVerifyEmail)

	sid := env.anonymous(t)
	if err := env.engine.AcceptVerificationLink(ctx, sid, "acc-1", link); err != nil {
		t.Fatalf("AcceptVerificationLink failed: %v", err)
	}

	env.store.mu.Lock()
	delete(env.store.accounts, "acc-1")
	env.store.mu.Unlock()

	if _, err := env.engine.CompleteVerification(ctx, sid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmailChangeRequiresReverification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acc := env.seedAccount(t, "acc-1", "alice@example.com", true)
	sid := env.login(t, acc, false)

	changed, err := env.engine.ChangeEmail(ctx, sid, acc, "alice@work.example.com")
	if err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}
	if changed.IsVerified() {
		t.Fatal("a new email must be unverified")
	}

	if err := env.engine.SendVerification(ctx, changed); err != nil {
		t.Fatalf("SendVerification failed: %v", err)
	}
	link := env.lastLink(t, mail.TagVerifyEmail)
	if err := env.engine.AcceptVerificationLink(ctx, sid, "acc-1", link); err != nil {
		t.Fatalf("AcceptVerificationLink failed: %v", err)
	}
	verified, err := env.engine.CompleteVerification(ctx, sid)
	if err != nil || !verified.IsVerified() || verified.VerifiedEmail != "alice@work.example.com" {
		t.Fatalf("unexpected verification result: %+v %v", verified, err)
	}

	back, err := env.engine.ChangeEmail(ctx, sid, verified, "ALICE@work.example.com")
	if err != nil {
		t.Fatalf("ChangeEmail back failed: %v", err)
	}
	if !back.IsVerified() {
		t.Fatal("a case-only change must keep the account verified")
	}
}

func TestAcceptVerificationLinkRejectsOtherAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	attacker := env.seedAccount(t, "acc-attacker", "mallory@example.com", false)
	env.seedAccount(t, "acc-victim", "victim@example.com", false)

	if err := env.engine.SendVerification(ctx, attacker); err != nil {
		t.Fatalf("SendVerification failed: %v", err)
	}
	link := env.lastLink(t, mail.TagVerifyEmail)

	sid := env.anonymous(t)
	if err := env.engine.AcceptVerificationLink(ctx, sid, "acc-victim", link); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("expected ErrLinkInvalid for a link issued to another account, got %v", err)
	}
	if _, err := env.engine.CompleteVerification(ctx, sid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no pending verification, got %v", err)
	}
	if env.store.get(t, "acc-victim").IsVerified() {
		t.Fatal("victim must stay unverified")
	}
}

func TestAcceptVerificationLinkRejectsResetLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "acc-1", "alice@example.com", false)

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	link := env.lastLink(t, mail.TagForgotPassword)

	sid := env.anonymous(t)
	if err := env.engine.AcceptVerificationLink(ctx, sid, "acc-1", link); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("expected ErrLinkInvalid for a reset link, got %v", err)
	}
	if env.store.get(t, "acc-1").IsVerified() {
		t.Fatal("a reset link must not verify the email")
	}
}
