package domain

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusClicked Status = "clicked"
)

// ReviewRequest is one review invitation for one recipient. Status only
// moves forward: pending -> sent -> clicked. SentAt and ClickedAt are set
// exactly once, on their respective transitions.
type ReviewRequest struct {
	ID              int64
	BusinessID      int64
	CustomerContact string
	ShortCode       string
	ReviewText      string
	Status          Status
	CreatedAt       time.Time
	SentAt          *time.Time
	ClickedAt       *time.Time
}
