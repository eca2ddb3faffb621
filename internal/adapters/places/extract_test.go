package places_test

import (
	"testing"

	"reviewboost/internal/adapters/places"
)

func TestLooksLikeURL(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"https://maps.app.goo.gl/AbC123", true},
		{"http://google.com/maps/place/X", true},
		{"maps.app.goo.gl/AbC123", true},
		{"www.google.com/maps/place/Joe", true},
		{"Joe's Diner Brooklyn", false},
		{"httpd config shop", true}, // prefix match, not a word match
		{"Pizza Palace", false},
	}
	for _, c := range cases {
		if got := places.LooksLikeURL(c.in); got != c.want {
			t.Errorf("LooksLikeURL(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestExtractPlaceID(t *testing.T) {
	cases := []struct {
		in     string
		wantID string
		wantOK bool
	}{
		{"https://www.google.com/maps/search/?api=1&place_id=ChIJN1t_tDeuEmsR", "ChIJN1t_tDeuEmsR", true},
		{"https://maps.google.com/?place_id:ChIJabc_123-xyz", "ChIJabc_123-xyz", true},
		{"https://www.google.com/maps/place/Foo/data=!1sChIJOwg_06VPwokRYv534QaPC8g", "ChIJOwg_06VPwokRYv534QaPC8g", true},
		// hex feature ids after !1s don't count; only ChIJ tokens do
		{"https://www.google.com/maps/place/Foo/@40.7,-74.0,17z/data=!3m1!1s0x89c25a31:0x123", "", false},
		{"https://www.google.com/maps/place/Foo", "", false},
	}
	for _, c := range cases {
		id, ok := places.ExtractPlaceID(c.in)
		if ok != c.wantOK || id != c.wantID {
			t.Errorf("ExtractPlaceID(%q) = (%q, %v), want (%q, %v)", c.in, id, ok, c.wantID, c.wantOK)
		}
	}
}

func TestExtractName(t *testing.T) {
	cases := []struct {
		in       string
		wantName string
		wantOK   bool
	}{
		{"https://www.google.com/maps/place/Joe's+Diner/@40.7,-74.0,17z", "Joe's Diner", true},
		{"https://www.google.com/maps/place/Caf%C3%A9+Luna/data=...", "Café Luna", true},
		{"https://www.google.com/maps/search/pizza+near+me/@40.7,-74.0", "pizza near me", true},
		{"https://www.google.com/maps/@40.7,-74.0,12z", "", false},
		// the segment ends at the first / or @
		{"https://www.google.com/maps/place/Taco+Town/reviews", "Taco Town", true},
	}
	for _, c := range cases {
		name, ok := places.ExtractName(c.in)
		if ok != c.wantOK || name != c.wantName {
			t.Errorf("ExtractName(%q) = (%q, %v), want (%q, %v)", c.in, name, ok, c.wantName, c.wantOK)
		}
	}
}

func TestExtractCoords(t *testing.T) {
	c, ok := places.ExtractCoords("https://www.google.com/maps/place/X/@40.7128,-74.0060,17z")
	if !ok {
		t.Fatalf("expected coords")
	}
	if c.Lat != 40.7128 || c.Lng != -74.0060 {
		t.Fatalf("unexpected coords: %+v", c)
	}

	if _, ok := places.ExtractCoords("https://www.google.com/maps/place/X"); ok {
		t.Fatalf("expected no coords")
	}
	// integer coordinates don't match; the pattern requires a decimal point
	if _, ok := places.ExtractCoords("https://g.co/maps/@40,-74,12z"); ok {
		t.Fatalf("expected no coords for integer pair")
	}
}
