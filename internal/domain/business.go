package domain

import "time"

// Place is the canonical result of place resolution: a display name plus
// the opaque identifier issued by the mapping service.
type Place struct {
	Name    string
	PlaceID string
}

// Business is the persisted aggregate of a resolved Place. GooglePlaceID is
// the unique key: re-resolving the same place reuses the row and refreshes
// the name, never duplicates it.
type Business struct {
	ID            int64
	Name          string
	GooglePlaceID string
	CreatedAt     time.Time
}
