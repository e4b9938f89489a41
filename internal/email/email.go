package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// VerificationEmail is the job handed to the email collaborator: deliver the
// one-time code to the address that is being verified.
type VerificationEmail struct {
	To       string `json:"to"`
	Username string `json:"username"`
	Code     string `json:"code"`
}

// Sender delivers verification emails. A failure here must surface as a
// visible registration or resend failure, never be swallowed.
type Sender interface {
	SendVerificationEmail(mail VerificationEmail) error
}

// SMTPSender delivers verification emails over a plain SMTP relay.
type SMTPSender struct {
	addr string // host:port of the relay
	from string
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{
		addr: addr,
		from: from,
	}
}

// SendVerificationEmail renders and sends the verification mail.
func (s *SMTPSender) SendVerificationEmail(mail VerificationEmail) error {
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", mail.To),
		"Subject: Verification code",
		"",
		fmt.Sprintf("Hello %s,", mail.Username),
		"",
		fmt.Sprintf("Thank you for registering. Your verification code is: %s", mail.Code),
		"The code expires in 1 hour.",
		"",
		"If you did not request this code, please ignore this email.",
	}, "\r\n")

	if err := smtp.SendMail(s.addr, nil, s.from, []string{mail.To}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send verification email to %s: %w", mail.To, err)
	}
	return nil
}
