// Package mail sends SMTP mail, optionally rendered from HTML templates.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// ErrNoRecipients is returned when a message has no To address.
var ErrNoRecipients = errors.New("platform/mail: no recipients")

// Config describes the SMTP relay and sender.
type Config struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	TemplatesDir string
	Timeout      time.Duration
}

// Message is a single outgoing mail.
type Message struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	HTML    bool
}

// Mailer delivers messages through an SMTP relay.
type Mailer struct {
	cfg       Config
	templates *template.Template
}

// New parses templates from cfg.TemplatesDir when set, falling back to the
// built-in templates.
func New(cfg Config) (*Mailer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	var source fs.FS = defaultTemplates
	pattern := "templates/*.html"
	if cfg.TemplatesDir != "" {
		source = os.DirFS(cfg.TemplatesDir)
		pattern = "*.html"
	}
	tpl, err := template.ParseFS(source, pattern)
	if err != nil {
		return nil, fmt.Errorf("platform/mail: parse templates: %w", err)
	}
	return &Mailer{cfg: cfg, templates: tpl}, nil
}

// Send delivers msg. Cc and Bcc recipients receive the message too; Bcc is
// never written to the headers.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	raw := m.build(msg)
	rcpts := make([]string, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	rcpts = append(rcpts, msg.To...)
	rcpts = append(rcpts, msg.Cc...)
	rcpts = append(rcpts, msg.Bcc...)
	if err := m.deliver(ctx, rcpts, raw); err != nil {
		return fmt.Errorf("platform/mail: send %q: %w", msg.Subject, err)
	}
	return nil
}

// SendTemplate renders the named template with data and sends it as HTML.
func (m *Mailer) SendTemplate(ctx context.Context, msg Message, name string, data any) error {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("platform/mail: render %s: %w", name, err)
	}
	msg.Body = buf.String()
	msg.HTML = true
	return m.Send(ctx, msg)
}

func (m *Mailer) build(msg Message) []byte {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", m.cfg.From)
	header("To", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		header("Cc", strings.Join(msg.Cc, ", "))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	header("Content-Type", contentType+"; charset=utf-8")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

func (m *Mailer) deliver(ctx context.Context, rcpts []string, raw []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}
	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.cfg.Username != "" && m.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return err
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
