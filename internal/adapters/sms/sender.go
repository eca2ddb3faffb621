package sms

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"reviewboost/internal/domain"
	"reviewboost/internal/shared"
)

// Carrier email-to-SMS gateways. Keys are the values the portal submits.
var gateways = map[string]string{
	"tmobile": "tmomail.net",
	"att":     "txt.att.net",
	"verizon": "vtext.com",
	"sprint":  "messaging.sprintpcs.com",
}

// Carriers lists the supported carriers in portal display order.
func Carriers() []domain.Carrier {
	return []domain.Carrier{
		{Value: "tmobile", Label: "T-Mobile / Mint / Metro"},
		{Value: "att", Label: "AT&T / Cricket"},
		{Value: "verizon", Label: "Verizon"},
		{Value: "sprint", Label: "Sprint"},
	}
}

// New picks the delivery backend. Anything other than twilio falls back to
// the email gateway path. Missing credentials surface at send time, not
// here, so a half-configured deployment still boots.
func New(cfg shared.SMSConfig, log zerolog.Logger) domain.MessageSender {
	if strings.ToLower(cfg.Backend) == "twilio" {
		return NewTwilio("", cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, log)
	}
	return NewGateway(cfg, log)
}

// normalizeUSPhone reduces free-form input to a bare 10-digit US number.
// An 11-digit number with a leading country code 1 is accepted.
func normalizeUSPhone(to string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, to)
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return digits, true
}

// DiagnoseReport mirrors the configuration back to the operator. Booleans
// and hostnames only; credential values never leave the process.
type DiagnoseReport struct {
	Backend          string `json:"backend"`
	TwilioConfigured *bool  `json:"twilio_configured,omitempty"`
	SMTPHost         string `json:"smtp_host,omitempty"`
	SMTPPort         int    `json:"smtp_port,omitempty"`
	SMTPUserSet      *bool  `json:"smtp_user_set,omitempty"`
	SMTPPassSet      *bool  `json:"smtp_pass_set,omitempty"`
	SMTPLogin        string `json:"smtp_login,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Diagnose reports backend readiness. For the email backend it performs a
// live SMTP dial, STARTTLS, and login probe.
func Diagnose(ctx context.Context, cfg shared.SMSConfig) DiagnoseReport {
	backend := strings.ToLower(cfg.Backend)
	rep := DiagnoseReport{Backend: backend}

	if backend == "twilio" {
		ok := cfg.TwilioSID != "" && cfg.TwilioToken != "" && cfg.TwilioFrom != ""
		rep.TwilioConfigured = &ok
		if !ok {
			rep.Error = "Missing TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, or TWILIO_FROM_NUMBER"
		}
		return rep
	}

	userSet := cfg.SMTPUser != ""
	passSet := cfg.SMTPPass != ""
	rep.SMTPHost = cfg.SMTPHost
	rep.SMTPPort = cfg.SMTPPort
	rep.SMTPUserSet = &userSet
	rep.SMTPPassSet = &passSet

	if !userSet || !passSet {
		rep.Error = "SMTP_USER or SMTP_PASSWORD not set"
		return rep
	}

	if err := probeSMTP(ctx, cfg); err != nil {
		rep.SMTPLogin = "failed"
		rep.Error = err.Error()
	} else {
		rep.SMTPLogin = "ok"
	}
	return rep
}
