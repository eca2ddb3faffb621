package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewboost/internal/adapters/observability"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"

	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5-20250929"

	maxTokens = 200
)

var ErrUnauthorized = errors.New("anthropic: unauthorized")

// Client generates review text through the Messages API. Generation is
// best-effort: callers are expected to fall back to a static template when
// it fails, so retries are kept light (one, on 429/5xx).
type Client struct {
	base  string
	hc    *http.Client
	key   string
	model string
	rl    *rate.Limiter
}

func New(base, key, model string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		base = defaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base:  base,
		hc:    &http.Client{Timeout: 30 * time.Second},
		key:   key,
		model: model,
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// WriteReview asks the model for a short 5-star review of the named
// business. An empty completion is an error, never an empty string.
func (c *Client) WriteReview(ctx context.Context, businessName string) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(
		"Write a short, natural-sounding 5-star Google review for a business called '%s'. "+
			"Keep it 2-3 sentences, warm and authentic. "+
			"No hashtags or emojis. Return only the review text.",
		businessName,
	)
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for i := 0; i < 2; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/messages", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.key)
		req.Header.Set("anthropic-version", apiVersion)

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("anthropic", "messages", 0, time.Since(start))
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		observability.ObserveExternal("anthropic", "messages", resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusOK:
			var out messagesResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return "", err
			}
			if len(out.Content) == 0 {
				return "", errors.New("anthropic: empty completion")
			}
			text := strings.TrimSpace(out.Content[0].Text)
			if text == "" {
				return "", errors.New("anthropic: empty review text")
			}
			return text, nil

		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			return "", ErrUnauthorized

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryWait(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("anthropic: remote %d", resp.StatusCode)
			if i == 0 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return "", fmt.Errorf("anthropic: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return "", lastErr
}

func retryWait(resp *http.Response) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 500 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
