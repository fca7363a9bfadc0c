package mailer

import (
	"fmt"
	"log"
	"net"
	"net/smtp"
)

// Mailer sends HTML mail over SMTP. With no host configured it logs and
// drops, so dev environments run without a mail relay.
type Mailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// New builds a mailer from config values.
func New(host, port, username, password, from string) *Mailer {
	return &Mailer{Host: host, Port: port, Username: username, Password: password, From: from}
}

// Enabled reports whether a relay is configured.
func (m *Mailer) Enabled() bool {
	return m.Host != ""
}

// Send delivers a single HTML message.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if !m.Enabled() {
		log.Printf("mailer disabled, dropping %q to %s", subject, to)
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.From, to, subject, htmlBody)
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, m.Port)
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
