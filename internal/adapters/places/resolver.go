package places

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"reviewboost/internal/adapters/observability"
	"reviewboost/internal/domain"
)

// LinkExpander follows a share link to a canonical maps URL. ok=false means
// the caller should keep working with its original URL.
type LinkExpander interface {
	Expand(ctx context.Context, rawURL string) (string, bool)
}

// Searcher is the Places API surface the resolver needs. A nil Searcher
// disables the search stages; direct id extraction still works.
type Searcher interface {
	SearchText(ctx context.Context, query string, bias *Coords) (domain.Place, error)
	DisplayName(ctx context.Context, placeID string) (string, error)
}

// Resolver turns free-form input (a share link, a full maps URL, or a plain
// business name) into a place. Stages run in a fixed order and fall through
// on failure; only exhausting every stage yields domain.ErrNotFound.
type Resolver struct {
	expand LinkExpander
	search Searcher
	log    zerolog.Logger
}

func NewResolver(expand LinkExpander, search Searcher, log zerolog.Logger) *Resolver {
	return &Resolver{expand: expand, search: search, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, input string) (domain.Place, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return domain.Place{}, domain.ErrNotFound
	}

	if !LooksLikeURL(text) {
		if p, ok := r.trySearch(ctx, "name_search", text, nil); ok {
			return p, nil
		}
		return r.miss(ctx)
	}

	rawURL := text
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}

	// Expansion failure is not fatal: the input may already carry enough.
	full := rawURL
	if expanded, ok := r.expand.Expand(ctx, rawURL); ok {
		full = expanded
	}
	r.log.Debug().Str("url", full).Msg("redirect target")

	if id, ok := ExtractPlaceID(full); ok {
		name := "Business"
		if n, ok := ExtractName(full); ok {
			name = n
		}
		// The URL-derived name is a display heuristic; the API name is
		// authoritative when available.
		if r.search != nil {
			if apiName, err := r.search.DisplayName(ctx, id); err == nil && apiName != "" {
				name = apiName
			}
		}
		observability.ObserveResolution("direct", "ok")
		return domain.Place{Name: name, PlaceID: id}, nil
	}

	query, hasQuery := ExtractName(full)
	coords, hasCoords := ExtractCoords(full)
	r.log.Debug().
		Str("query", query).
		Bool("has_coords", hasCoords).
		Msg("extracted url tokens")

	var bias *Coords
	if hasCoords {
		c := coords
		bias = &c
	}

	if hasQuery {
		if p, ok := r.trySearch(ctx, "text_search", query, bias); ok {
			return p, nil
		}
	} else if hasCoords {
		q := fmt.Sprintf("%v,%v", coords.Lat, coords.Lng)
		if p, ok := r.trySearch(ctx, "coords_search", q, bias); ok {
			return p, nil
		}
	}

	return r.miss(ctx)
}

// trySearch runs one search stage. A nil searcher, an upstream miss, and an
// upstream error all fall through the same way; only the metric outcome
// distinguishes them.
func (r *Resolver) trySearch(ctx context.Context, stage, query string, bias *Coords) (domain.Place, bool) {
	if r.search == nil {
		observability.ObserveResolution(stage, "disabled")
		return domain.Place{}, false
	}
	p, err := r.search.SearchText(ctx, query, bias)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			observability.ObserveResolution(stage, "miss")
		} else {
			observability.ObserveResolution(stage, "error")
			r.log.Warn().Str("stage", stage).Err(err).Msg("place search failed")
		}
		return domain.Place{}, false
	}
	observability.ObserveResolution(stage, "ok")
	return p, true
}

func (r *Resolver) miss(ctx context.Context) (domain.Place, error) {
	if ctx.Err() != nil {
		return domain.Place{}, ctx.Err()
	}
	observability.ObserveResolution("pipeline", "miss")
	return domain.Place{}, domain.ErrNotFound
}
