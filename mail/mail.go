// Package mail hands outgoing mail to a transactional-email collaborator.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"socialhub/config"
)

// Mailer sends a single HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns an SMTP mailer when SMTP is configured, otherwise a mailer
// that only logs.
func New(cfg config.MailConfig, log *logrus.Entry) Mailer {
	if cfg.Enabled() {
		return NewSMTPMailer(cfg, log)
	}
	log.Warn("SMTP not configured, outgoing mail will only be logged")
	return &LogMailer{log: log}
}

type SMTPMailer struct {
	cfg  config.MailConfig
	log  *logrus.Entry
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.MailConfig, log *logrus.Entry) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log, send: smtp.SendMail}
}

func (s *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.cfg.From, to, subject, body)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)

	if err := s.send(s.cfg.SMTPHost+":"+s.cfg.SMTPPort, auth, s.cfg.From, []string{to}, msg); err != nil {
		s.log.WithError(err).WithField("to", to).Error("send mail")
		return fmt.Errorf("send mail: %w", err)
	}
	s.log.WithField("to", to).Info("mail sent")
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-version: 1.0;\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\";\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer records messages instead of sending them. Used in development
// and tests.
type LogMailer struct {
	log  *logrus.Entry
	mu   sync.Mutex
	sent []Sent
}

type Sent struct {
	To      string
	Subject string
	Body    string
}

func NewLogMailer(log *logrus.Entry) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.sent = append(m.sent, Sent{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	m.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("mail (not sent)")
	return nil
}

// Sent returns a copy of everything passed to Send.
func (m *LogMailer) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recent message sent to addr.
func (m *LogMailer) Last(addr string) (Sent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == addr {
			return m.sent[i], true
		}
	}
	return Sent{}, false
}
