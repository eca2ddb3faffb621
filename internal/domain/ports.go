package domain

import "context"

type ReviewRepository interface {
	// Write paths
	UpsertBusiness(ctx context.Context, name, placeID string) (Business, error)
	CreateRequest(ctx context.Context, rr ReviewRequest) (ReviewRequest, error)
	UpdateReviewText(ctx context.Context, id int64, text string) error
	MarkSent(ctx context.Context, id int64) (bool, error)
	MarkClicked(ctx context.Context, code string) (bool, error)
	DeleteRequest(ctx context.Context, id int64) error

	// Read paths
	CodeExists(ctx context.Context, code string) (bool, error)
	RequestByCode(ctx context.Context, code string) (ReviewRequest, error)
	RequestByID(ctx context.Context, id int64) (ReviewRequest, error)
	GetBusiness(ctx context.Context, id int64) (Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)
	CountRequests(ctx context.Context, businessID int64) (total int64, clicked int64, err error)
	ListRequests(ctx context.Context, businessID int64, limit int) ([]ReviewRequest, error)
}

// PlaceResolver turns a raw maps link or a free-text business name into a
// Place. ErrNotFound when the whole pipeline comes up empty.
type PlaceResolver interface {
	Resolve(ctx context.Context, input string) (Place, error)
}

// ReviewWriter drafts review text for a business. Optional capability;
// callers fall back to a static template when it is absent or failing.
type ReviewWriter interface {
	WriteReview(ctx context.Context, businessName string) (string, error)
}

// MessageSender dispatches a single message. carrier selects the gateway
// for email-to-SMS backends and is ignored by direct API backends.
type MessageSender interface {
	Send(ctx context.Context, to, body, carrier string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Read models & command results

type DashboardStats struct {
	TotalSent    int64
	TotalClicked int64
	ClickRate    float64
}

type DashboardView struct {
	Stats    DashboardStats
	Requests []ReviewRequest
}

type GeneratedReview struct {
	ID         int64
	Phone      string
	ReviewText string
	SMSBody    string
	Link       string
}

type GeneratedBatch struct {
	BusinessName string
	Reviews      []GeneratedReview
}

// SendItem carries per-row edits from the preview screen; empty fields
// leave the stored values untouched.
type SendItem struct {
	ID         int64
	SMSBody    string
	ReviewText string
}

type SendReport struct {
	Sent   []string
	Failed []string
	Errors []string
}

type Carrier struct {
	Value string
	Label string
}
