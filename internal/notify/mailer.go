package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// MailSender delivers notifications as plain-text email over SMTP. The
// connection is upgraded with STARTTLS when the server offers it, which is the
// case for the usual submission port 587.
type MailSender struct {
	host     string
	addr     string
	from     string
	password string
	to       []string
}

// NewMailSender creates a MailSender that authenticates as from and delivers
// to the given recipients.
func NewMailSender(host string, port int, from, password string, to []string) *MailSender {
	return &MailSender{
		host:     host,
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		from:     from,
		password: password,
		to:       append([]string(nil), to...),
	}
}

// Send delivers a single message with the given subject (title) and body to
// all configured recipients. The SMTP dial respects the context deadline.
func (m *MailSender) Send(ctx context.Context, title, message string) error {
	if len(m.to) == 0 {
		return fmt.Errorf("mail: no recipients configured")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", m.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}

	if m.password != "" {
		auth := smtp.PlainAuth("", m.from, m.password, m.host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("mail: auth as %s: %w", m.from, err)
		}
	}

	if err := c.Mail(m.from); err != nil {
		return fmt.Errorf("mail: set sender: %w", err)
	}
	for _, rcpt := range m.to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: add recipient %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: open data stream: %w", err)
	}
	if _, err := w.Write(buildMessage(m.from, m.to, title, message)); err != nil {
		w.Close()
		return fmt.Errorf("mail: write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: close data stream: %w", err)
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("mail: quit: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (m *MailSender) Name() string {
	return "mail"
}

// buildMessage assembles an RFC 5322 message with CRLF line endings. SMTP
// servers reject bare LF in the data stream, so the body is normalized too.
func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
