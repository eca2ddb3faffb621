package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"reviewboost/internal/domain"
)

// ResolveService fronts the resolution pipeline with a cache and request
// coalescing. Hits are cheap; misses are never cached, so a business that
// was unreachable once resolves normally on the next try.
type ResolveService struct {
	resolver domain.PlaceResolver
	cache    domain.Cache
	cacheTTL time.Duration
	sf       singleflight.Group
	log      zerolog.Logger
}

func NewResolveService(r domain.PlaceResolver, c domain.Cache, ttl time.Duration, log zerolog.Logger) *ResolveService {
	return &ResolveService{resolver: r, cache: c, cacheTTL: ttl, log: log}
}

func (s *ResolveService) Resolve(ctx context.Context, input string) (domain.Place, error) {
	key := placeKey(input)

	var cached domain.Place
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	// Coalesce concurrent resolutions of the same input: the pipeline does
	// network fan-out, so duplicate in-flight work is expensive.
	v, err, _ := s.sf.Do(key, func() (any, error) {
		place, err := s.resolver.Resolve(ctx, input)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			_ = s.cache.Set(ctx, key, place, int(s.cacheTTL.Seconds()))
		}
		return place, nil
	})
	if err != nil {
		return domain.Place{}, err
	}
	return v.(domain.Place), nil
}

// placeKey hashes the trimmed input so arbitrarily long URLs make fixed-size
// cache keys.
func placeKey(input string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(input)))
	return "place:" + hex.EncodeToString(sum[:])
}
