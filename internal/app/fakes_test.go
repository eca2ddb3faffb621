package app_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"reviewboost/internal/domain"
)

// fakeRepo is an in-memory domain.ReviewRepository with a couple of
// failure-injection knobs.
type fakeRepo struct {
	mu         sync.Mutex
	nextBizID  int64
	nextReqID  int64
	bizByID    map[int64]domain.Business
	bizByPlace map[string]int64
	reqByID    map[int64]domain.ReviewRequest
	idByCode   map[string]int64

	takenCodes   map[string]bool // advisory CodeExists hits
	dupRemaining int             // next N CreateRequest calls collide
	createCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		bizByID:    map[int64]domain.Business{},
		bizByPlace: map[string]int64{},
		reqByID:    map[int64]domain.ReviewRequest{},
		idByCode:   map[string]int64{},
		takenCodes: map[string]bool{},
	}
}

func (f *fakeRepo) UpsertBusiness(ctx context.Context, name, placeID string) (domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.bizByPlace[placeID]; ok {
		b := f.bizByID[id]
		b.Name = name
		f.bizByID[id] = b
		return b, nil
	}
	f.nextBizID++
	b := domain.Business{ID: f.nextBizID, Name: name, GooglePlaceID: placeID, CreatedAt: time.Now()}
	f.bizByID[b.ID] = b
	f.bizByPlace[placeID] = b.ID
	return b, nil
}

func (f *fakeRepo) CreateRequest(ctx context.Context, rr domain.ReviewRequest) (domain.ReviewRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.dupRemaining > 0 {
		f.dupRemaining--
		return domain.ReviewRequest{}, domain.ErrDuplicateCode
	}
	f.nextReqID++
	rr.ID = f.nextReqID
	if rr.Status == "" {
		rr.Status = domain.StatusPending
	}
	rr.CreatedAt = time.Now()
	f.reqByID[rr.ID] = rr
	f.idByCode[rr.ShortCode] = rr.ID
	return rr, nil
}

func (f *fakeRepo) UpdateReviewText(ctx context.Context, id int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rr, ok := f.reqByID[id]
	if !ok {
		return domain.ErrNotFound
	}
	rr.ReviewText = text
	f.reqByID[id] = rr
	return nil
}

func (f *fakeRepo) MarkSent(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rr, ok := f.reqByID[id]
	if !ok || rr.Status != domain.StatusPending {
		return false, nil
	}
	now := time.Now()
	rr.Status = domain.StatusSent
	rr.SentAt = &now
	f.reqByID[id] = rr
	return true, nil
}

func (f *fakeRepo) MarkClicked(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.idByCode[code]
	if !ok {
		return false, nil
	}
	rr := f.reqByID[id]
	if rr.Status != domain.StatusSent {
		return false, nil
	}
	now := time.Now()
	rr.Status = domain.StatusClicked
	rr.ClickedAt = &now
	f.reqByID[id] = rr
	return true, nil
}

func (f *fakeRepo) DeleteRequest(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rr, ok := f.reqByID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(f.reqByID, id)
	delete(f.idByCode, rr.ShortCode)
	return nil
}

func (f *fakeRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takenCodes[code] {
		return true, nil
	}
	_, ok := f.idByCode[code]
	return ok, nil
}

func (f *fakeRepo) RequestByCode(ctx context.Context, code string) (domain.ReviewRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.idByCode[code]
	if !ok {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	return f.reqByID[id], nil
}

func (f *fakeRepo) RequestByID(ctx context.Context, id int64) (domain.ReviewRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rr, ok := f.reqByID[id]
	if !ok {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	return rr, nil
}

func (f *fakeRepo) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bizByID[id]
	if !ok {
		return domain.Business{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Business, 0, len(f.bizByID))
	for _, b := range f.bizByID {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepo) CountRequests(ctx context.Context, businessID int64) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, clicked int64
	for _, rr := range f.reqByID {
		if rr.BusinessID != businessID {
			continue
		}
		total++
		if rr.Status == domain.StatusClicked {
			clicked++
		}
	}
	return total, clicked, nil
}

func (f *fakeRepo) ListRequests(ctx context.Context, businessID int64, limit int) ([]domain.ReviewRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ReviewRequest
	for _, rr := range f.reqByID {
		if rr.BusinessID == businessID {
			out = append(out, rr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeCache round-trips values through JSON, same as the real adapter.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := json.Marshal(v)
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

// ---- capability stubs ----

type stubResolver struct {
	place domain.Place
	err   error
	calls int32
	delay time.Duration
}

func (s *stubResolver) Resolve(ctx context.Context, input string) (domain.Place, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return domain.Place{}, s.err
	}
	return s.place, nil
}

type stubWriter struct {
	text  string
	err   error
	calls int
}

func (w *stubWriter) WriteReview(ctx context.Context, businessName string) (string, error) {
	w.calls++
	if w.err != nil {
		return "", w.err
	}
	return w.text, nil
}

type stubSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
}

func (s *stubSender) Send(ctx context.Context, to, body, carrier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[to]; ok {
		return err
	}
	s.sent = append(s.sent, to)
	return nil
}
