package share

import "time"

// Grant is a trip shared by its owner with another account.
type Grant struct {
	ID          string    `json:"id"`
	TripID      string    `json:"trip_id"`
	OwnerID     string    `json:"owner_id"`
	RecipientID string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SharedTrip is a trip summary as seen by someone it was shared with.
type SharedTrip struct {
	TripID        string    `json:"trip_id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	CoverPhotoURL string    `json:"cover_photo_url"`
	SharedAt      time.Time `json:"shared_at"`
}
