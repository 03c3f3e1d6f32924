package services

import (
	"context"
	"fmt"

	"pdfvault/internal/httperr"
	"pdfvault/internal/mailer"
	"pdfvault/internal/otp"
)

const (
	PurposeSignup        = "signup"
	PurposePasswordReset = "password-reset"
)

// OTPService orchestrates code issuance and verification: it owns the code
// store, the mail dispatch, and the account-existence policy check.
type OTPService struct {
	Codes *otp.Store
	Mail  *mailer.Mailer

	// UserExists is swappable for tests; defaults to the Mongo lookup.
	UserExists func(ctx context.Context, email string) (bool, error)
}

func NewOTPService(codes *otp.Store, mail *mailer.Mailer) *OTPService {
	return &OTPService{
		Codes:      codes,
		Mail:       mail,
		UserExists: UserExists,
	}
}

func otpSubjectBody(purpose, code string) (string, string) {
	if purpose == PurposePasswordReset {
		return "Reset your password",
			fmt.Sprintf("<p>Your password reset code is <b>%s</b>. It expires in 5 minutes.</p>", code)
	}
	return "Verify your email",
		fmt.Sprintf("<p>Your verification code is <b>%s</b>. It expires in 5 minutes.</p>", code)
}

// Issue stores a fresh code for the email and mails it. A send failure after
// retries is a hard error: returning success for a code the user never
// received would lock them out silently.
//
// For password resets, a missing account yields a generic success with no
// code issued and no mail sent, so response shape never reveals whether an
// account exists. A failed existence lookup assumes the account exists and
// proceeds (availability over strictness).
func (s *OTPService) Issue(ctx context.Context, email, purpose string) error {
	if purpose != PurposeSignup && purpose != PurposePasswordReset {
		return httperr.BadRequest("invalid otp type")
	}

	if purpose == PurposePasswordReset {
		exists, err := s.UserExists(ctx, email)
		if err == nil && !exists {
			return nil
		}
	}

	code, err := s.Codes.Issue(ctx, email)
	if err != nil {
		return httperr.Upstream("failed to issue verification code", err)
	}

	subject, body := otpSubjectBody(purpose, code)
	if err := s.Mail.Send(email, subject, body); err != nil {
		return httperr.Upstream("failed to send verification email", err)
	}

	return nil
}

// Verify checks a submitted code, consuming it on success.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	err := s.Codes.Verify(ctx, email, code)
	switch err {
	case nil:
		return nil
	case otp.ErrNoCodeOrExpired:
		return httperr.NotFound(err.Error())
	case otp.ErrInvalidCode:
		return httperr.BadRequest(err.Error())
	default:
		return httperr.Upstream("failed to verify code", err)
	}
}
