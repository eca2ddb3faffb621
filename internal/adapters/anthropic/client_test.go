package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reviewboost/internal/adapters/anthropic"
)

func TestWriteReview_Success(t *testing.T) {
	var gotKey, gotVersion string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(200)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "  Great spot, friendly staff. Highly recommend!  "},
			},
		})
	}))
	defer ts.Close()

	cl, err := anthropic.New(ts.URL, "sk-test", "", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	text, err := cl.WriteReview(ctx, "Joe's Diner")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if text != "Great spot, friendly staff. Highly recommend!" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
	if gotKey != "sk-test" {
		t.Fatalf("api key header not sent, got %q", gotKey)
	}
	if gotVersion != "2023-06-01" {
		t.Fatalf("unexpected version header: %q", gotVersion)
	}
	if gotBody["model"] != anthropic.DefaultModel {
		t.Fatalf("unexpected model: %v", gotBody["model"])
	}
	if gotBody["max_tokens"] != 200.0 {
		t.Fatalf("unexpected max_tokens: %v", gotBody["max_tokens"])
	}
	msgs := gotBody["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].(string)
	if !strings.Contains(content, "Joe's Diner") || !strings.Contains(content, "5-star") {
		t.Fatalf("unexpected prompt: %q", content)
	}
}

func TestWriteReview_RetriesOn429(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(429)
			return
		}
		w.WriteHeader(200)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "fine"}},
		})
	}))
	defer ts.Close()

	cl, _ := anthropic.New(ts.URL, "sk-test", "m", 100)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := cl.WriteReview(ctx, "X")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if text != "fine" {
		t.Fatalf("unexpected text: %q", text)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected one retry, got %d hits", hits)
	}
}

func TestWriteReview_EmptyTextIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "   "}},
		})
	}))
	defer ts.Close()

	cl, _ := anthropic.New(ts.URL, "sk-test", "m", 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := cl.WriteReview(ctx, "X"); err == nil {
		t.Fatalf("expected error for blank completion")
	}
}

func TestWriteReview_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
	}))
	defer ts.Close()

	cl, _ := anthropic.New(ts.URL, "bad", "m", 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := cl.WriteReview(ctx, "X")
	if !errors.Is(err, anthropic.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := anthropic.New("", "", "", 1); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
