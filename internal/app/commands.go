package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"reviewboost/internal/adapters/observability"
	"reviewboost/internal/domain"
)

// ReviewService owns the write paths: generating review requests, sending
// them, recording clicks, and deleting rows. The writer and sender are
// optional capabilities; the repo and resolver are not.
type ReviewService struct {
	repo     domain.ReviewRepository
	resolver domain.PlaceResolver
	writer   domain.ReviewWriter
	sender   domain.MessageSender
	cache    domain.Cache
	workers  int
	log      zerolog.Logger
}

func NewReviewService(
	repo domain.ReviewRepository,
	resolver domain.PlaceResolver,
	writer domain.ReviewWriter,
	sender domain.MessageSender,
	cache domain.Cache,
	workers int,
	log zerolog.Logger,
) *ReviewService {
	if workers <= 0 {
		workers = 4
	}
	return &ReviewService{
		repo: repo, resolver: resolver, writer: writer, sender: sender,
		cache: cache, workers: workers, log: log,
	}
}

// GenerateBatch resolves the place once for the whole submission, upserts
// the business, and creates one pending request per phone. Resolution
// failure aborts the batch; per-recipient text generation does not, it
// degrades to a static template.
func (s *ReviewService) GenerateBatch(ctx context.Context, baseURL, link string, phones []string) (domain.GeneratedBatch, error) {
	place, err := s.resolver.Resolve(ctx, link)
	if err != nil {
		return domain.GeneratedBatch{}, err
	}

	biz, err := s.repo.UpsertBusiness(ctx, place.Name, place.PlaceID)
	if err != nil {
		return domain.GeneratedBatch{}, err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, BusinessesKey)
	}

	out := domain.GeneratedBatch{BusinessName: biz.Name}
	for _, phone := range phones {
		text := s.reviewText(ctx, biz.Name)
		req, err := s.createWithCode(ctx, biz.ID, phone, text)
		if err != nil {
			return domain.GeneratedBatch{}, err
		}
		reviewLink := baseURL + "/r/" + req.ShortCode
		out.Reviews = append(out.Reviews, domain.GeneratedReview{
			ID:         req.ID,
			Phone:      phone,
			ReviewText: text,
			SMSBody:    fmt.Sprintf("Thanks for visiting %s! We'd love a quick Google review: %s", biz.Name, reviewLink),
			Link:       reviewLink,
		})
	}
	return out, nil
}

func (s *ReviewService) reviewText(ctx context.Context, businessName string) string {
	if s.writer != nil {
		text, err := s.writer.WriteReview(ctx, businessName)
		if err == nil {
			return text
		}
		s.log.Warn().Err(err).Str("business", businessName).Msg("review generation failed, using fallback text")
	}
	return fmt.Sprintf("Had a great experience at %s! Friendly service and highly recommended.", businessName)
}

// createWithCode draws a unique short code and inserts the request. The
// unique key on short_code is the real arbiter: a lost race surfaces as
// ErrDuplicateCode and we simply draw again.
func (s *ReviewService) createWithCode(ctx context.Context, bizID int64, phone, text string) (domain.ReviewRequest, error) {
	for attempt := 0; attempt < domain.DefaultCodeAttempts; attempt++ {
		code, err := domain.GenerateUniqueCode(ctx, s.repo.CodeExists, domain.DefaultCodeLength, domain.DefaultCodeAttempts)
		if err != nil {
			return domain.ReviewRequest{}, err
		}
		req, err := s.repo.CreateRequest(ctx, domain.ReviewRequest{
			BusinessID:      bizID,
			CustomerContact: phone,
			ShortCode:       code,
			ReviewText:      text,
			Status:          domain.StatusPending,
		})
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return domain.ReviewRequest{}, err
		}
		s.log.Warn().Str("code", code).Msg("short code collided on insert, drawing again")
	}
	return domain.ReviewRequest{}, domain.ErrExhaustedRetries
}

// SendBatch marks each known request sent, then dispatches the messages
// concurrently. Unknown ids are skipped without failing the batch; delivery
// failures land in the report, not in the error return. A request stays
// sent even when dispatch fails, matching the delivery-attempted reading of
// the status.
func (s *ReviewService) SendBatch(ctx context.Context, items []domain.SendItem, carrier string) (domain.SendReport, error) {
	if s.sender == nil {
		return domain.SendReport{}, errors.New("sms sending is not configured")
	}

	type outcome struct {
		contact string
		skipped bool
		err     error
	}
	results := make([]outcome, len(items))

	sem := semaphore.NewWeighted(int64(s.workers))
	var wg sync.WaitGroup
	for i, item := range items {
		req, err := s.repo.RequestByID(ctx, item.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				results[i] = outcome{skipped: true}
				continue
			}
			return domain.SendReport{}, err
		}

		// Persist preview edits to the review text before sending.
		if item.ReviewText != "" && item.ReviewText != req.ReviewText {
			if err := s.repo.UpdateReviewText(ctx, req.ID, item.ReviewText); err != nil {
				return domain.SendReport{}, err
			}
		}
		if _, err := s.repo.MarkSent(ctx, req.ID); err != nil {
			return domain.SendReport{}, err
		}

		wg.Add(1)
		go func(i int, contact, body string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = outcome{contact: contact, err: err}
				return
			}
			defer sem.Release(1)
			if err := s.sender.Send(ctx, contact, body, carrier); err != nil {
				results[i] = outcome{contact: contact, err: err}
				return
			}
			results[i] = outcome{contact: contact}
		}(i, req.CustomerContact, item.SMSBody)
	}
	wg.Wait()

	var rep domain.SendReport
	for _, r := range results {
		if r.skipped {
			continue
		}
		if r.err != nil {
			rep.Failed = append(rep.Failed, r.contact)
			rep.Errors = append(rep.Errors, r.contact+": "+r.err.Error())
			continue
		}
		rep.Sent = append(rep.Sent, r.contact)
	}
	return rep, nil
}

// Click records a visit to a short link. The conditional update makes the
// sent -> clicked transition idempotent; repeat visits and visits to never
// sent requests change nothing but still render the page.
func (s *ReviewService) Click(ctx context.Context, code string) (domain.ReviewRequest, domain.Business, error) {
	transitioned, err := s.repo.MarkClicked(ctx, code)
	if err != nil {
		return domain.ReviewRequest{}, domain.Business{}, err
	}

	req, err := s.repo.RequestByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			observability.ObserveClick("unknown")
		}
		return domain.ReviewRequest{}, domain.Business{}, err
	}
	biz, err := s.repo.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return domain.ReviewRequest{}, domain.Business{}, err
	}

	if transitioned {
		observability.ObserveClick("clicked")
		s.log.Info().Str("code", code).Int64("request_id", req.ID).Msg("review link clicked")
	} else {
		observability.ObserveClick("repeat")
	}
	return req, biz, nil
}

func (s *ReviewService) DeleteRequest(ctx context.Context, id int64) error {
	return s.repo.DeleteRequest(ctx, id)
}
