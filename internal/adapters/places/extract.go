package places

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Token extraction over (possibly redirect-resolved) maps URLs. Everything
// here runs on plain text and never touches the network.

var (
	placeIDParamRe  = regexp.MustCompile(`place_id[=:]([A-Za-z0-9_-]+)`)
	featureIDRe     = regexp.MustCompile(`!1s(ChIJ[A-Za-z0-9_-]+)`)
	placeSegmentRe  = regexp.MustCompile(`/maps/place/([^/@]+)`)
	searchSegmentRe = regexp.MustCompile(`/maps/search/([^/@]+)`)
	coordsRe        = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)
)

// LooksLikeURL classifies raw input: anything with a scheme prefix or a
// known maps marker is treated as a URL, everything else as a business
// name query.
func LooksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http") ||
		strings.Contains(s, "google.com/maps") ||
		strings.Contains(s, "goo.gl/")
}

// ExtractPlaceID finds an explicit place_id parameter or a ChIJ feature id
// inside a !1s map-state fragment. A hit is authoritative and short-circuits
// the search fallbacks.
func ExtractPlaceID(u string) (string, bool) {
	if m := placeIDParamRe.FindStringSubmatch(u); m != nil {
		return m[1], true
	}
	if m := featureIDRe.FindStringSubmatch(u); m != nil {
		return m[1], true
	}
	return "", false
}

// ExtractName pulls the path segment after /maps/place/ or /maps/search/,
// percent-decoded with '+' as space.
func ExtractName(u string) (string, bool) {
	for _, re := range []*regexp.Regexp{placeSegmentRe, searchSegmentRe} {
		if m := re.FindStringSubmatch(u); m != nil {
			return decodeSegment(m[1]), true
		}
	}
	return "", false
}

func decodeSegment(s string) string {
	if dec, err := url.QueryUnescape(s); err == nil {
		return dec
	}
	return strings.ReplaceAll(s, "+", " ")
}

// Coords is an optional @lat,lng bias embedded in a maps URL.
type Coords struct{ Lat, Lng float64 }

func ExtractCoords(u string) (Coords, bool) {
	m := coordsRe.FindStringSubmatch(u)
	if m == nil {
		return Coords{}, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lng, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return Coords{}, false
	}
	return Coords{Lat: lat, Lng: lng}, true
}
