package sms

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reviewboost/internal/adapters/observability"
	"reviewboost/internal/shared"
)

// Gateway delivers SMS through carrier email-to-SMS bridges over SMTP.
// The delivery address is {10 digits}@{carrier gateway host}.
type Gateway struct {
	cfg shared.SMSConfig
	log zerolog.Logger

	// sendMail is swappable for tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewGateway(cfg shared.SMSConfig, log zerolog.Logger) *Gateway {
	return &Gateway{cfg: cfg, log: log, sendMail: smtp.SendMail}
}

func (g *Gateway) Send(ctx context.Context, to, body, carrier string) error {
	if carrier == "" {
		return fmt.Errorf("email backend requires a carrier selection")
	}
	host, ok := gateways[carrier]
	if !ok {
		return fmt.Errorf("unknown carrier %q, supported: %s", carrier, supportedCarriers())
	}
	digits, ok := normalizeUSPhone(to)
	if !ok {
		return fmt.Errorf("invalid US phone number: %s", to)
	}

	smsAddr := digits + "@" + host
	if err := g.email(smsAddr, "", body); err != nil {
		g.log.Error().Str("to", to).Str("gateway", host).Err(err).Msg("sms gateway send failed")
		return err
	}
	g.log.Info().Str("to", to).Str("via", smsAddr).Msg("sms sent via gateway")
	return nil
}

// email sends one HTML message. Carrier gateways want an empty subject for
// plain texts, so subject may be blank.
func (g *Gateway) email(to, subject, body string) error {
	user := strings.TrimSpace(g.cfg.SMTPUser)
	pass := strings.TrimSpace(g.cfg.SMTPPass)
	if user == "" || pass == "" {
		return fmt.Errorf("SMTP_USER or SMTP_PASSWORD is missing")
	}
	from := g.cfg.FromEmail
	if from == "" {
		from = user
	}

	msg := []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body,
	}, "\r\n"))

	auth := smtp.PlainAuth("", user, pass, g.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", g.cfg.SMTPHost, g.cfg.SMTPPort)

	start := time.Now()
	err := g.sendMail(addr, auth, from, []string{to}, msg)
	if err != nil {
		observability.ObserveExternal("smtp", "send", 0, time.Since(start))
		return fmt.Errorf("smtp: %w", err)
	}
	observability.ObserveExternal("smtp", "send", 200, time.Since(start))
	return nil
}

func supportedCarriers() string {
	keys := make([]string, 0, len(gateways))
	for k := range gateways {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// probeSMTP walks the send handshake step by step (dial, EHLO, STARTTLS,
// AUTH) without sending mail, so the diagnose endpoint can name the exact
// failing step.
func probeSMTP(ctx context.Context, cfg shared.SMSConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTP connection error: %w", err)
	}
	defer conn.Close()

	cl, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("SMTP handshake error: %w", err)
	}
	defer cl.Close()

	if err := cl.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
		return fmt.Errorf("SMTP STARTTLS error: %w", err)
	}
	auth := smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	if err := cl.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth failed: %w", err)
	}
	_ = cl.Quit()
	return nil
}
