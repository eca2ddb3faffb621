package places

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reviewboost/internal/adapters/observability"
)

// maxScanBytes caps how much of a response body the matchers ever see.
const maxScanBytes = 200_000

// identity is one request persona. Shortened share links answer differently
// per client: a bot-like identity often gets a plain redirect while a
// browser identity gets the full consent-wrapped document, so both are
// tried in order.
type identity struct {
	label   string
	headers map[string]string
}

var identities = []identity{
	{label: "bot", headers: map[string]string{
		"User-Agent": "facebookexternalhit/1.1",
	}},
	{label: "browser", headers: map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.9",
	}},
}

// matcher extracts one embedded canonical maps URL form from an HTML body.
type matcher struct {
	name string
	re   *regexp.Regexp
}

// Matchers run in priority order, first match wins: structural tags beat
// raw URL scraping, which beats JS-redirect scraping. The order is part of
// the contract and is pinned by tests.
var matchers = []matcher{
	{"meta_refresh", regexp.MustCompile(`(?i)<meta[^>]+content="\d+;\s*url=(https://(?:www\.)?google\.[a-z.]+/maps/[^"]+)"`)},
	{"link_tag", regexp.MustCompile(`(?i)<link[^>]+href="[^"]*?(https://(?:www\.)?google\.[a-z.]+/maps/[^"&]+)`)},
	{"anchor_href", regexp.MustCompile(`(?i)<a[^>]+href="(https://[^"]*google\.[^"]*/maps/[^"]+)"`)},
	{"raw_place_url", regexp.MustCompile(`(?i)(https://(?:www\.)?google\.[a-z.]+/maps/(?:place|search)/[^\s"'<>\\]+)`)},
	{"raw_maps_url", regexp.MustCompile(`(?i)(https://(?:www\.)?google\.[a-z.]+/maps/[^\s"'<>\\]+)`)},
	{"percent_encoded", regexp.MustCompile(`(?i)(https%3A%2F%2F(?:www\.)?google\.\w+%2Fmaps%2F[^\s"'<>]+)`)},
	{"js_redirect", regexp.MustCompile(`(?i)window\.location(?:\.href\s*=\s*|\.replace\s*\(\s*|\.assign\s*\(\s*)["'](https://[^"']*google\.[^"']*/maps/[^"']+)`)},
}

// FindMapsURL scans an HTML body for an embedded canonical maps URL using
// the ordered matcher list. Percent-encoded winners are decoded before
// returning.
func FindMapsURL(body string) (string, bool) {
	for _, m := range matchers {
		if g := m.re.FindStringSubmatch(body); g != nil {
			found := g[1]
			if strings.Contains(found, "%") {
				if dec, err := url.QueryUnescape(found); err == nil {
					found = dec
				}
			}
			return found, true
		}
	}
	return "", false
}

// Expander follows share-link redirect chains to a canonical maps URL.
type Expander struct {
	hc  *http.Client
	log zerolog.Logger
}

func NewExpander(log zerolog.Logger) *Expander {
	return &Expander{
		hc:  &http.Client{Timeout: 15 * time.Second},
		log: log,
	}
}

// Expand resolves rawURL through its redirect chain, once per identity.
// It succeeds when the final URL is already a canonical maps URL, else when
// a matcher finds one in the body. Network errors fall through to the next
// identity; when every identity fails the caller keeps its input URL.
func (e *Expander) Expand(ctx context.Context, rawURL string) (string, bool) {
	for _, id := range identities {
		start := time.Now()
		final, body, status, err := e.fetch(ctx, rawURL, id)
		observability.ObserveExternal("expand", id.label, status, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return "", false
			}
			e.log.Warn().Str("identity", id.label).Err(err).Msg("expand request failed")
			continue
		}
		e.log.Info().
			Str("identity", id.label).
			Int("status", status).
			Str("final_url", final).
			Msg("expand response")

		if strings.Contains(final, "google.com/maps") {
			return final, true
		}
		if found, ok := FindMapsURL(body); ok {
			return found, true
		}
	}
	return "", false
}

func (e *Expander) fetch(ctx context.Context, rawURL string, id identity) (finalURL, body string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", 0, err
	}
	for k, v := range id.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.hc.Do(req)
	if err != nil {
		return "", "", 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxScanBytes))
	if err != nil {
		return "", "", resp.StatusCode, err
	}
	return resp.Request.URL.String(), string(b), resp.StatusCode, nil
}
