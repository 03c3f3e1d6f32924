// Package mailer delivers HTML notification emails over SMTP with a small
// retry policy. OTP issuance treats a final send failure as a hard error, so
// the retry result must be reported faithfully.
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Sender is the transport contract: deliver one HTML message or fail.
type Sender interface {
	Send(to, subject, html string) error
}

// SMTPSender sends through a gomail dialer. The dialer keeps connection
// setup out of the hot path; it is shared across requests, not re-created
// per message.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(to, subject, html string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// Mailer wraps a Sender with retries: up to 2 additional attempts after the
// first failure, exponential backoff starting at baseDelay and doubling.
type Mailer struct {
	sender    Sender
	retries   int
	baseDelay time.Duration
	sleep     func(time.Duration)
}

func New(sender Sender) *Mailer {
	return &Mailer{
		sender:    sender,
		retries:   2,
		baseDelay: time.Second,
		sleep:     time.Sleep,
	}
}

// Send attempts delivery, retrying on failure. The last error is returned
// once all attempts are exhausted.
func (m *Mailer) Send(to, subject, html string) error {
	delay := m.baseDelay
	var err error
	for attempt := 0; attempt <= m.retries; attempt++ {
		if attempt > 0 {
			m.sleep(delay)
			delay *= 2
		}
		if err = m.sender.Send(to, subject, html); err == nil {
			return nil
		}
	}
	return fmt.Errorf("send failed after %d attempts: %w", m.retries+1, err)
}
