package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/pkg/errors"
)

// Mailer is an open SMTP session
type Mailer interface {
	Send(from string, to []string, msg []byte) error
	Quit() error
}

// Dialer opens an SMTP session
type Dialer func(ctx context.Context) (Mailer, error)

// EmailConfig holds the SMTP account used to send notifications
type EmailConfig struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
	Timeout   time.Duration
}

// Mail is one queued message
type Mail struct {
	To      string
	Subject string
	Body    string
}

// EmailNotifier sends mail over an implicit-TLS SMTP session. Messages sent
// while the session is down wait in a backlog and go out, in order, once
// Start or Flush succeeds.
type EmailNotifier struct {
	mu      sync.Mutex
	cfg     EmailConfig
	dial    Dialer
	session Mailer
	started bool
	backlog []Mail
	log     *logger.Logger
}

// NewEmailNotifier creates a stopped notifier
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	n := &EmailNotifier{
		cfg: cfg,
		log: logger.ForNotifier("email"),
	}
	n.dial = n.dialTLS
	return n
}

// WithDialer replaces how SMTP sessions are opened
func (n *EmailNotifier) WithDialer(d Dialer) *EmailNotifier {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dial = d
	return n
}

// Start opens the session and sends the backlog
func (n *EmailNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.started = true
	if err := n.connectLocked(ctx); err != nil {
		return err
	}
	return n.flushLocked()
}

// Stop closes the session. Later messages are kept in the backlog.
func (n *EmailNotifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.started = false
	if n.session == nil {
		return nil
	}
	err := n.session.Quit()
	n.session = nil
	if err != nil {
		return errors.NewNotifier("smtp quit", err)
	}
	return nil
}

// Send queues a message and, when started, sends everything queued
func (n *EmailNotifier) Send(to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.backlog = append(n.backlog, Mail{To: to, Subject: subject, Body: body})
	if !n.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()
	if err := n.connectLocked(ctx); err != nil {
		return err
	}
	return n.flushLocked()
}

// Flush retries the backlog, reconnecting if the session was lost
func (n *EmailNotifier) Flush(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started || len(n.backlog) == 0 {
		return nil
	}
	if err := n.connectLocked(ctx); err != nil {
		return err
	}
	return n.flushLocked()
}

// Backlog returns the number of messages waiting to be sent
func (n *EmailNotifier) Backlog() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.backlog)
}

// Notify implements Notifier
func (n *EmailNotifier) Notify(_ context.Context, ev Event) error {
	return n.Send(n.cfg.Recipient, ev.Subject(), ev.HTML())
}

// Close implements Notifier
func (n *EmailNotifier) Close() error {
	if pending := n.Backlog(); pending > 0 {
		n.log.Warn().Int("pending", pending).Msg("Closing with unsent mail")
	}
	return n.Stop()
}

func (n *EmailNotifier) connectLocked(ctx context.Context) error {
	if n.session != nil {
		return nil
	}
	session, err := n.dial(ctx)
	if err != nil {
		return errors.NewNotifier("smtp connect", err)
	}
	n.session = session
	n.log.Info().Str("host", n.cfg.Host).Msg("SMTP session started")
	return nil
}

// flushLocked sends the backlog in order. On the first failure the session
// is dropped and the unsent messages stay queued.
func (n *EmailNotifier) flushLocked() error {
	for len(n.backlog) > 0 {
		m := n.backlog[0]
		if err := n.session.Send(n.cfg.Sender, []string{m.To}, n.compose(m)); err != nil {
			n.session.Quit()
			n.session = nil
			n.log.Warn().Err(err).Int("pending", len(n.backlog)).Msg("Send failed, keeping mail for retry")
			return errors.NewNotifier("smtp send", err)
		}
		n.backlog = n.backlog[1:]
	}
	return nil
}

func (n *EmailNotifier) compose(m Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

func (n *EmailNotifier) dialTLS(ctx context.Context) (Mailer, error) {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: n.cfg.Timeout},
		Config:    &tls.Config{ServerName: n.cfg.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if n.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", n.cfg.Sender, n.cfg.Password, n.cfg.Host)); err != nil {
			client.Close()
			return nil, err
		}
	}
	return &smtpSession{client: client}, nil
}

type smtpSession struct {
	client *smtp.Client
}

func (s *smtpSession) Send(from string, to []string, msg []byte) error {
	if err := s.client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := s.client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := s.client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *smtpSession) Quit() error {
	return s.client.Quit()
}
