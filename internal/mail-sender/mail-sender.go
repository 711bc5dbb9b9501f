package mailSender

import (
	"errors"
	"fmt"

	"messenger_auth/internal/models"

	"gopkg.in/gomail.v2"
)

var ErrUnknownPurpose = errors.New("unknown message purpose")

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	dialer *gomail.Dialer
}

func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		dialer:   gomail.NewDialer(host, port, username, password),
	}
}

// * Build renders a queued message into an email. Subject and body depend
// on the purpose.
func (m *Mailer) Build(msg models.Message) (*gomail.Message, error) {
	const op = "mailSender.Build"

	subject, body, err := compose(msg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	from := m.From
	if from == "" {
		from = m.Username
	}

	out := gomail.NewMessage()
	out.SetHeader("To", msg.Email)
	out.SetHeader("From", from)
	out.SetHeader("Subject", subject)
	out.SetBody("text/plain", body)

	return out, nil
}

func (m *Mailer) Send(msg models.Message) error {
	const op = "mailSender.Send"

	out, err := m.Build(msg)
	if err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func compose(msg models.Message) (subject, body string, err error) {
	switch msg.Purpose {
	case models.PurposeEmailConfirm:
		return "Email confirmation",
			fmt.Sprintf("Hi %s,\n\nconfirm your email address by opening the link below:\n%s\n", msg.Username, msg.Link),
			nil
	case models.PurposePasswordReset:
		return "Password reset",
			fmt.Sprintf("Hi %s,\n\nsomeone requested a password reset for your account. "+
				"If it was you, open the link below:\n%s\n\nOtherwise ignore this email.\n", msg.Username, msg.Link),
			nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownPurpose, msg.Purpose)
	}
}
