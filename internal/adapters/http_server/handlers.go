package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"

	"reviewboost/internal/adapters/sms"
	"reviewboost/internal/app"
	"reviewboost/internal/domain"
	"reviewboost/internal/shared"
)

// Handlers carries the services the portal API is built from. Sender may be
// nil when no SMS backend is configured; the send endpoints then report the
// problem instead of panicking.
type Handlers struct {
	Reviews  *app.ReviewService
	Queries  *app.QueryService
	Resolver *app.ResolveService
	Sender   domain.MessageSender
	SMSCfg   shared.SMSConfig
	BaseURL  string // overrides per-request derivation when set
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/carriers", h.listCarriers)
		r.Get("/resolve-place", h.resolvePlace)
		r.Get("/businesses", h.listBusinesses)
		r.Post("/generate", h.generateReviews)
		r.Post("/send", h.sendReviews)
		r.Get("/dashboard", h.dashboard)
		r.Delete("/review/{id}", h.deleteReview)
		r.Get("/sms-diagnose", h.smsDiagnose)
		r.Post("/sms-test", h.smsTest)
	})
}

// ---- wire shapes (the portal frontend reads these keys verbatim) ----

type carrierDTO struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type placeDTO struct {
	Name    string `json:"name"`
	PlaceID string `json:"place_id"`
}

type businessDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	GooglePlaceID string `json:"google_place_id"`
}

type generateRequest struct {
	GoogleLink string   `json:"google_link"`
	Phones     []string `json:"phones"`
}

type generatedReviewDTO struct {
	ID         int64  `json:"id"`
	Phone      string `json:"phone"`
	ReviewText string `json:"review_text"`
	SMSBody    string `json:"sms_body"`
	Link       string `json:"link"`
}

type generateResponse struct {
	BusinessName string               `json:"business_name"`
	Reviews      []generatedReviewDTO `json:"reviews"`
}

type sendItemDTO struct {
	ID         int64  `json:"id"`
	SMSBody    string `json:"sms_body"`
	ReviewText string `json:"review_text"`
}

type sendRequest struct {
	Reviews []sendItemDTO `json:"reviews"`
	Carrier string        `json:"carrier"`
}

type sendResponse struct {
	Sent   []string `json:"sent"`
	Failed []string `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

type dashboardStatsDTO struct {
	TotalSent    int64   `json:"total_sent"`
	TotalClicked int64   `json:"total_clicked"`
	ClickRate    float64 `json:"click_rate"`
}

type dashboardReviewDTO struct {
	ID              int64      `json:"id"`
	CustomerContact string     `json:"customer_contact"`
	Status          string     `json:"status"`
	SentAt          *time.Time `json:"sent_at"`
	ClickedAt       *time.Time `json:"clicked_at"`
}

type dashboardResponse struct {
	Stats   dashboardStatsDTO    `json:"stats"`
	Reviews []dashboardReviewDTO `json:"reviews"`
}

type smsTestRequest struct {
	Phone   string `json:"phone"`
	Carrier string `json:"carrier"`
}

type sendResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ---- response helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers conditional GETs with 304 when the client already
// holds the current representation. Used for the slow-moving lists.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// baseURL prefers the configured public URL, then proxy headers, then the
// Host the client connected with. Short links must be reachable from the
// recipient's phone, so guessing wrong here breaks every SMS.
func (h *Handlers) baseURL(r *http.Request) string {
	if h.BaseURL != "" {
		return strings.TrimRight(h.BaseURL, "/")
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host
}

// ---- handlers ----

func (h *Handlers) listCarriers(w http.ResponseWriter, r *http.Request) {
	cs := sms.Carriers()
	out := make([]carrierDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, carrierDTO{Value: c.Value, Label: c.Label})
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) resolvePlace(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if err := validation.Validate(url, validation.Required.Error("URL is required")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	place, err := h.Resolver.Resolve(r.Context(), url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("place resolution failed")
		writeError(w, http.StatusNotFound, "Could not resolve place. Check the URL or GOOGLE_MAPS_API_KEY.")
		return
	}
	writeJSON(w, http.StatusOK, placeDTO{Name: place.Name, PlaceID: place.PlaceID})
}

func (h *Handlers) listBusinesses(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Queries.ListBusinesses(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list businesses failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]businessDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, businessDTO{ID: b.ID, Name: b.Name, GooglePlaceID: b.GooglePlaceID})
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) generateReviews(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	phones := req.Phones[:0]
	for _, p := range req.Phones {
		if p = strings.TrimSpace(p); p != "" {
			phones = append(phones, p)
		}
	}
	if err := validation.Validate(phones, validation.Required.Error("At least one phone number is required.")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.Reviews.GenerateBatch(r.Context(), h.baseURL(r), strings.TrimSpace(req.GoogleLink), phones)
	if err != nil {
		log.Warn().Err(err).Msg("generate batch failed")
		writeError(w, http.StatusBadRequest, "Could not resolve Google link. Check GOOGLE_MAPS_API_KEY and the link.")
		return
	}

	resp := generateResponse{BusinessName: batch.BusinessName, Reviews: make([]generatedReviewDTO, 0, len(batch.Reviews))}
	for _, rv := range batch.Reviews {
		resp.Reviews = append(resp.Reviews, generatedReviewDTO{
			ID: rv.ID, Phone: rv.Phone, ReviewText: rv.ReviewText, SMSBody: rv.SMSBody, Link: rv.Link,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) sendReviews(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validation.Validate(req.Reviews, validation.Required.Error("No reviews to send.")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]domain.SendItem, 0, len(req.Reviews))
	for _, it := range req.Reviews {
		items = append(items, domain.SendItem{
			ID:         it.ID,
			SMSBody:    strings.TrimSpace(it.SMSBody),
			ReviewText: strings.TrimSpace(it.ReviewText),
		})
	}
	rep, err := h.Reviews.SendBatch(r.Context(), items, strings.TrimSpace(req.Carrier))
	if err != nil {
		log.Error().Err(err).Msg("send batch failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := sendResponse{Sent: rep.Sent, Failed: rep.Failed, Errors: rep.Errors}
	if resp.Sent == nil {
		resp.Sent = []string{}
	}
	if resp.Failed == nil {
		resp.Failed = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	businessID, err := strconv.ParseInt(r.URL.Query().Get("business_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}
	view, err := h.Queries.Dashboard(r.Context(), businessID)
	if err != nil {
		log.Error().Err(err).Int64("business_id", businessID).Msg("dashboard query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := dashboardResponse{
		Stats: dashboardStatsDTO{
			TotalSent:    view.Stats.TotalSent,
			TotalClicked: view.Stats.TotalClicked,
			ClickRate:    view.Stats.ClickRate,
		},
		Reviews: make([]dashboardReviewDTO, 0, len(view.Requests)),
	}
	for _, rr := range view.Requests {
		resp.Reviews = append(resp.Reviews, dashboardReviewDTO{
			ID:              rr.ID,
			CustomerContact: rr.CustomerContact,
			Status:          string(rr.Status),
			SentAt:          rr.SentAt,
			ClickedAt:       rr.ClickedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err := h.Reviews.DeleteRequest(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("delete review failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) smsDiagnose(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sms.Diagnose(r.Context(), h.SMSCfg))
}

func (h *Handlers) smsTest(w http.ResponseWriter, r *http.Request) {
	var req smsTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Carrier = strings.TrimSpace(req.Carrier)
	errs := validation.Errors{
		"phone":   validation.Validate(req.Phone, validation.Required),
		"carrier": validation.Validate(req.Carrier, validation.Required),
	}
	if errs.Filter() != nil {
		writeError(w, http.StatusBadRequest, "phone and carrier are required")
		return
	}
	if h.Sender == nil {
		writeJSON(w, http.StatusOK, sendResult{OK: false, Error: "sms sending is not configured"})
		return
	}

	const body = "Test message from ReviewBoost. If you see this, SMS is working!"
	if err := h.Sender.Send(r.Context(), req.Phone, body, req.Carrier); err != nil {
		writeJSON(w, http.StatusOK, sendResult{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sendResult{OK: true})
}
