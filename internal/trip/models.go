package trip

import (
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/shared/syncmeta"
)

// Trip is the locally persisted travel record. The local ID is assigned at
// creation and never changes; the remote ID arrives with the first successful
// remote create.
type Trip struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	CoverPhotoURL string    `json:"cover_photo_url,omitempty"`
	IsPublic      bool      `json:"is_public"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	syncmeta.Meta
}

// RouteStats summarizes the route drawn by a trip's checkpoints.
type RouteStats struct {
	TripID          string  `json:"trip_id"`
	CheckpointCount int     `json:"checkpoint_count"`
	TotalDistanceKm float64 `json:"total_distance_km"`
}
