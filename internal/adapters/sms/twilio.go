package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"reviewboost/internal/adapters/observability"
)

const twilioBaseURL = "https://api.twilio.com"

// Twilio sends through the Messages REST resource. One attempt per send:
// a retried POST could text the same customer twice.
type Twilio struct {
	base  string
	hc    *http.Client
	sid   string
	token string
	from  string
	rl    *rate.Limiter
	log   zerolog.Logger
}

func NewTwilio(base, sid, token, from string, log zerolog.Logger) *Twilio {
	if base == "" {
		base = twilioBaseURL
	}
	return &Twilio{
		base:  base,
		hc:    &http.Client{Timeout: 15 * time.Second},
		sid:   sid,
		token: token,
		from:  from,
		rl:    rate.NewLimiter(rate.Limit(10), 10),
		log:   log,
	}
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

// Send posts one message. The carrier argument is ignored: Twilio routes by
// number. The recipient is passed through as entered.
func (t *Twilio) Send(ctx context.Context, to, body, carrier string) error {
	if t.sid == "" || t.token == "" || t.from == "" {
		return errors.New("twilio is not configured (TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER)")
	}
	if err := t.rl.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.base, t.sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.sid, t.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := t.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("twilio", "messages", 0, time.Since(start))
		return fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("twilio", "messages", resp.StatusCode, time.Since(start))

	var out twilioResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return fmt.Errorf("twilio: %s", out.Message)
		}
		return fmt.Errorf("twilio: bad status %d", resp.StatusCode)
	}

	t.log.Info().Str("to", to).Str("sid", out.SID).Msg("sms sent")
	return nil
}
