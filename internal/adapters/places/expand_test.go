package places_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reviewboost/internal/adapters/places"
)

func TestFindMapsURL_Patterns(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"meta_refresh",
			`<meta http-equiv="refresh" content="0; url=https://www.google.com/maps/place/MetaHit">`,
			"https://www.google.com/maps/place/MetaHit",
		},
		{
			"link_tag",
			`<link rel="canonical" href="https://www.google.com/maps/place/LinkHit">`,
			"https://www.google.com/maps/place/LinkHit",
		},
		{
			"anchor_href",
			`<a class="cta" href="https://www.google.com/maps/place/AnchorHit">open</a>`,
			"https://www.google.com/maps/place/AnchorHit",
		},
		{
			"raw_place_url",
			`blah blah https://www.google.com/maps/place/RawHit/@40.7,-74.0 blah`,
			"https://www.google.com/maps/place/RawHit/@40.7,-74.0",
		},
		{
			"raw_maps_url",
			`see https://www.google.com/maps/dir/a/b for directions`,
			"https://www.google.com/maps/dir/a/b",
		},
		{
			"percent_encoded",
			`redirect target https%3A%2F%2Fwww.google.com%2Fmaps%2Fplace%2FPctHit found above`,
			"https://www.google.com/maps/place/PctHit",
		},
		{
			"js_redirect",
			`<script>window.location.href = "https://www.google.com/maps/place/JsHit";</script>`,
			"https://www.google.com/maps/place/JsHit",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := places.FindMapsURL(c.body)
			if !ok {
				t.Fatalf("expected a match")
			}
			if got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestFindMapsURL_PriorityOrder(t *testing.T) {
	// a raw URL appears first in the document, but the meta refresh
	// matcher runs first and must win
	body := `<html>
<p>https://www.google.com/maps/place/RawFirst</p>
<meta http-equiv="refresh" content="0; url=https://www.google.com/maps/place/MetaWins">
</html>`
	got, ok := places.FindMapsURL(body)
	if !ok {
		t.Fatalf("expected a match")
	}
	if got != "https://www.google.com/maps/place/MetaWins" {
		t.Fatalf("priority violated, got %q", got)
	}
}

func TestFindMapsURL_NoMatch(t *testing.T) {
	if _, ok := places.FindMapsURL(`<html><a href="https://example.com/x">nope</a></html>`); ok {
		t.Fatalf("expected no match")
	}
}

func TestFindMapsURL_PercentDecodeFailureKeepsRaw(t *testing.T) {
	// a stray % in the tail breaks decoding; the raw match is still returned
	body := `https://www.google.com/maps/place/Odd%ZZ`
	got, ok := places.FindMapsURL(body)
	if !ok {
		t.Fatalf("expected a match")
	}
	if got != "https://www.google.com/maps/place/Odd%ZZ" {
		t.Fatalf("got %q", got)
	}
}

func TestExpand_FinalURLAlreadyMaps(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/google.com/maps/place/Final", http.StatusFound)
	})
	mux.HandleFunc("/google.com/maps/place/Final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>consent page</html>")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	e := places.NewExpander(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, ok := e.Expand(ctx, ts.URL+"/start")
	if !ok {
		t.Fatalf("expected expansion to succeed")
	}
	if !strings.Contains(got, "google.com/maps/place/Final") {
		t.Fatalf("unexpected final url: %q", got)
	}
}

func TestExpand_FindsURLInBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><a href="https://www.google.com/maps/place/Hidden+Gem/@40.7,-74.0">view map</a></html>`)
	}))
	defer ts.Close()

	e := places.NewExpander(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, ok := e.Expand(ctx, ts.URL)
	if !ok {
		t.Fatalf("expected expansion to succeed")
	}
	if got != "https://www.google.com/maps/place/Hidden+Gem/@40.7,-74.0" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestExpand_SecondIdentitySucceeds(t *testing.T) {
	var mu sync.Mutex
	var uas []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		uas = append(uas, r.UserAgent())
		mu.Unlock()
		if strings.HasPrefix(r.UserAgent(), "facebookexternalhit") {
			// kill the connection so the first identity sees a network error
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		fmt.Fprint(w, `https://www.google.com/maps/place/BrowserOnly`)
	}))
	defer ts.Close()

	e := places.NewExpander(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, ok := e.Expand(ctx, ts.URL)
	if !ok {
		t.Fatalf("expected browser identity to succeed")
	}
	if got != "https://www.google.com/maps/place/BrowserOnly" {
		t.Fatalf("unexpected url: %q", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(uas) != 2 {
		t.Fatalf("expected 2 requests, got %d (%v)", len(uas), uas)
	}
	if uas[0] != "facebookexternalhit/1.1" {
		t.Fatalf("first identity should be the bot, got %q", uas[0])
	}
	if !strings.Contains(uas[1], "Chrome") {
		t.Fatalf("second identity should be a browser, got %q", uas[1])
	}
}

func TestExpand_AllIdentitiesFail(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, "<html>nothing to see</html>")
	}))
	defer ts.Close()

	e := places.NewExpander(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, ok := e.Expand(ctx, ts.URL); ok {
		t.Fatalf("expected failure")
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected both identities to be tried, got %d", got)
	}
}

func TestExpand_ScanIsCapped(t *testing.T) {
	// the maps URL sits past the scan cap and must not be found
	body := strings.Repeat("x", 210_000) + " https://www.google.com/maps/place/TooLate"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	e := places.NewExpander(zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, ok := e.Expand(ctx, ts.URL); ok {
		t.Fatalf("expected the late URL to be invisible to the scanner")
	}
}
