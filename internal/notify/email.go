package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Bounds for one SMTP delivery. A ctx deadline that is earlier wins.
const (
	smtpDialTimeout    = 10 * time.Second
	smtpSessionTimeout = 30 * time.Second
)

// sendMail is swapped in tests.
var sendMail = deliverSMTP

// EmailNotifier sends notifications through an SMTP relay.
type EmailNotifier struct {
	settings EmailSettings
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(s EmailSettings) *EmailNotifier {
	if s.Port == 0 {
		s.Port = 587
	}
	return &EmailNotifier{settings: s}
}

func (e *EmailNotifier) Name() string { return ChannelEmail }

// Send delivers the message as a plain-text email.
func (e *EmailNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := e.settings
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	if err := sendMail(ctx, addr, s.Host, auth, s.From, s.To, buildEmail(s.From, s.To, msg)); err != nil {
		return fmt.Errorf("failed to send email notification: %w", err)
	}
	return nil
}

// deliverSMTP is smtp.SendMail with a bounded dial and a connection deadline,
// so an unresponsive server cannot hold the caller past ctx.
func deliverSMTP(ctx context.Context, addr, host string, auth smtp.Auth, from string, to []string, body []byte) error {
	d := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(smtpSessionTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	// cancellation unblocks any pending read or write
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildEmail(from string, to []string, msg Message) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	sb.WriteString("Subject: " + sanitizeHeader(msg.Title) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
