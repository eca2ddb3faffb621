package app

import (
	"context"
	"math"
	"time"

	"reviewboost/internal/domain"
)

// BusinessesKey is the cache key for the portal's business list. Writers
// outside this package (the importer) delete it after direct repo writes.
const BusinessesKey = "businesses"

// dashboardLimit caps the request list on the dashboard at the most recent
// rows; stats still cover everything.
const dashboardLimit = 100

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// ListBusinesses serves the portal's business picker. Cached under a single
// key; GenerateBatch invalidates it on upsert.
func (s *QueryService) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	var out []domain.Business
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, BusinessesKey, &out); ok {
			return out, nil
		}
	}
	bs, err := s.repo.ListBusinesses(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, BusinessesKey, bs, int(s.cacheTTL.Seconds()))
	}
	return bs, nil
}

// Dashboard is read fresh on every call: click counts move underneath the
// operator and a stale cache here would hide exactly the number they are
// watching. An unknown business yields zeros, not an error.
func (s *QueryService) Dashboard(ctx context.Context, businessID int64) (domain.DashboardView, error) {
	total, clicked, err := s.repo.CountRequests(ctx, businessID)
	if err != nil {
		return domain.DashboardView{}, err
	}

	var rate float64
	if total > 0 {
		rate = math.Round(float64(clicked)/float64(total)*1000) / 10
	}

	reqs, err := s.repo.ListRequests(ctx, businessID, dashboardLimit)
	if err != nil {
		return domain.DashboardView{}, err
	}

	return domain.DashboardView{
		Stats: domain.DashboardStats{
			TotalSent:    total,
			TotalClicked: clicked,
			ClickRate:    rate,
		},
		Requests: reqs,
	}, nil
}
