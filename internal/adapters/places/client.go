package places

import (
	"bytes"
	"context"
	crand "crypto/rand"
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
	"reviewboost/internal/domain"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// Client talks to the Places API (v1). Text search is a POST, place details
// a GET; both carry the API key and a field mask in headers, are rate
// limited client-side, and retried on 429 and transient 5xx.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func NewClient(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		base = defaultBaseURL
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 10 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type searchTextRequest struct {
	TextQuery    string        `json:"textQuery"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type displayName struct {
	Text string `json:"text"`
}

type placeResult struct {
	ID          string      `json:"id"`
	DisplayName displayName `json:"displayName"`
}

type searchTextResponse struct {
	Places []placeResult `json:"places"`
}

type placeDetailsResponse struct {
	DisplayName displayName `json:"displayName"`
}

// SearchText runs a text query, biased to a 500 m circle around coords when
// given. A 200 with no places is a miss (domain.ErrNotFound), not an
// upstream failure. The first result wins; its display name falls back to
// the query itself when the API omits it.
func (c *Client) SearchText(ctx context.Context, query string, bias *Coords) (domain.Place, error) {
	in := searchTextRequest{TextQuery: query}
	if bias != nil {
		in.LocationBias = &locationBias{Circle: circle{
			Center: latLng{Latitude: bias.Lat, Longitude: bias.Lng},
			Radius: 500.0,
		}}
	}

	var out searchTextResponse
	err := c.do(ctx, http.MethodPost, c.base+"/places:searchText", "searchText",
		"places.id,places.displayName", in, &out)
	if err != nil {
		return domain.Place{}, err
	}
	if len(out.Places) == 0 {
		return domain.Place{}, domain.ErrNotFound
	}

	top := out.Places[0]
	name := top.DisplayName.Text
	if name == "" {
		name = query
	}
	return domain.Place{Name: name, PlaceID: top.ID}, nil
}

// DisplayName fetches the authoritative display name for a known place id.
func (c *Client) DisplayName(ctx context.Context, placeID string) (string, error) {
	var out placeDetailsResponse
	err := c.do(ctx, http.MethodGet, c.base+"/places/"+placeID, "details",
		"displayName", nil, &out)
	if err != nil {
		return "", err
	}
	return out.DisplayName.Text, nil
}

// ---- Internals ----

var (
	ErrUnauthorized = errors.New("places: unauthorized")
	ErrForbidden    = errors.New("places: forbidden")
)

// do performs one API call with client-side rate limiting, retries, and
// JSON decode into out. Retries on 429 and transient 5xx, honoring
// Retry-After when provided.
func (c *Client) do(ctx context.Context, method, url, endpoint, fieldMask string, in, out any) error {
	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Goog-Api-Key", c.key)
		req.Header.Set("X-Goog-FieldMask", fieldMask)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("places", endpoint, 0, time.Since(start))
			// network error or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			// context-aware sleep before retry
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("places", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			// decode then close
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("places: remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("places: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
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

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	// concurrency-safe jitter using crypto/rand
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0                  // 0..1
	j := time.Duration(0.5 * f * float64(base)) // up to +50%
	return base + j
}
