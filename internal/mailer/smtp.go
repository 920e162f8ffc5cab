// internal/mailer/smtp.go
package mailer

import (
	"fmt"

	"github.com/go-gomail/gomail"
	"github.com/google/uuid"
)

// SMTPTransport sends mail over authenticated SMTP.
type SMTPTransport struct {
	dialer *gomail.Dialer
	host   string
}

func NewSMTPTransport(host string, port int, user, password string) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(host, port, user, password),
		host:   host,
	}
}

func (t *SMTPTransport) Send(m Message) (string, error) {
	msg := gomail.NewMessage()
	if m.FromName != "" {
		msg.SetAddressHeader("From", m.From, m.FromName)
	} else {
		msg.SetHeader("From", m.From)
	}
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	if m.ReplyTo != "" {
		msg.SetHeader("Reply-To", m.ReplyTo)
	}

	// The id is assigned here rather than read back from the server, so the
	// caller always has a correlation key for tracking events.
	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), t.host)
	msg.SetHeader("Message-ID", id)

	if m.TrackOpens {
		msg.SetHeader("X-Track-Opens", "true")
	}
	if m.TrackClicks {
		msg.SetHeader("X-Track-Clicks", "true")
	}

	msg.SetBody("text/html", m.HTML)

	if err := t.dialer.DialAndSend(msg); err != nil {
		return "", err
	}
	return id, nil
}

var _ Transport = (*SMTPTransport)(nil)
