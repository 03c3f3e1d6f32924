package services

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"pdfvault/internal/httperr"
	"pdfvault/internal/mailer"
	"pdfvault/internal/otp"
)

type recordingSender struct {
	sent []string // recipient per dispatched message
	last string   // last HTML body
}

func (r *recordingSender) Send(to, subject, html string) error {
	r.sent = append(r.sent, to)
	r.last = html
	return nil
}

func newTestOTPService(t *testing.T, exists bool, lookupErr error) (*OTPService, *recordingSender) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sender := &recordingSender{}
	svc := NewOTPService(otp.NewStore(client), mailer.New(sender))
	svc.UserExists = func(ctx context.Context, email string) (bool, error) {
		return exists, lookupErr
	}
	return svc, sender
}

func TestIssueSignupSendsCode(t *testing.T) {
	svc, sender := newTestOTPService(t, false, nil)
	ctx := context.Background()

	if err := svc.Issue(ctx, "new@x.com", PurposeSignup); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "new@x.com" {
		t.Fatalf("mail dispatch: got %v, want one message to new@x.com", sender.sent)
	}
}

func TestIssueRejectsUnknownPurpose(t *testing.T) {
	svc, sender := newTestOTPService(t, true, nil)

	err := svc.Issue(context.Background(), "a@x.com", "login")
	var he *httperr.Error
	if !errors.As(err, &he) || he.Status != 400 {
		t.Fatalf("got %v, want 400", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("no mail must be dispatched for an invalid purpose")
	}
}

func TestPasswordResetHidesMissingAccount(t *testing.T) {
	svc, sender := newTestOTPService(t, false, nil)
	ctx := context.Background()

	// Generic success, but the notification dispatch is never invoked.
	if err := svc.Issue(ctx, "ghost@x.com", PurposePasswordReset); err != nil {
		t.Fatalf("issue for missing account: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("mail dispatched for missing account: %v", sender.sent)
	}

	// And no code is pending for that email.
	err := svc.Verify(ctx, "ghost@x.com", "123456")
	var he *httperr.Error
	if !errors.As(err, &he) || he.Status != 404 {
		t.Fatalf("got %v, want 404", err)
	}
}

func TestPasswordResetSendsForExistingAccount(t *testing.T) {
	svc, sender := newTestOTPService(t, true, nil)

	if err := svc.Issue(context.Background(), "user@x.com", PurposePasswordReset); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("mail dispatch: got %v, want one message", sender.sent)
	}
}

func TestPasswordResetLookupFailureFailsOpen(t *testing.T) {
	// An undecidable existence check assumes the account exists and still
	// sends, trading strictness for availability.
	svc, sender := newTestOTPService(t, false, errors.New("db down"))

	if err := svc.Issue(context.Background(), "user@x.com", PurposePasswordReset); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("mail dispatch: got %v, want one message", sender.sent)
	}
}

func TestVerifyTaxonomy(t *testing.T) {
	svc, sender := newTestOTPService(t, true, nil)
	ctx := context.Background()

	if err := svc.Issue(ctx, "a@x.com", PurposeSignup); err != nil {
		t.Fatalf("issue: %v", err)
	}

	// The issued code is inside the HTML body; extract the 6 digits.
	var code string
	for _, r := range sender.last {
		if r >= '0' && r <= '9' {
			code += string(r)
		}
	}
	code = code[:6]

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	var he *httperr.Error
	if err := svc.Verify(ctx, "a@x.com", wrong); !errors.As(err, &he) || he.Status != 400 {
		t.Fatalf("mismatch: got %v, want 400", err)
	}
	if err := svc.Verify(ctx, "a@x.com", code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Verify(ctx, "a@x.com", code); !errors.As(err, &he) || he.Status != 404 {
		t.Fatalf("reuse: got %v, want 404", err)
	}
}
