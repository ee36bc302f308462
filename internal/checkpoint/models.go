package checkpoint

import (
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/shared/syncmeta"
)

// Type distinguishes photo-derived checkpoints from manual check-ins.
// Values travel as raw strings in remote records.
type Type string

const (
	TypePhoto         Type = "photo"
	TypeManualCheckin Type = "manualCheckin"
)

// ParseType validates a raw checkpoint type string.
func ParseType(raw string) (Type, bool) {
	switch Type(raw) {
	case TypePhoto, TypeManualCheckin:
		return Type(raw), true
	}
	return "", false
}

// Category is the optional place category of a checkpoint.
type Category string

const (
	CategoryRestaurant Category = "restaurant"
	CategoryCafe       Category = "cafe"
	CategoryGasStation Category = "gas_station"
	CategoryHotel      Category = "hotel"
	CategoryTourist    Category = "tourist"
	CategoryPark       Category = "park"
	CategoryShopping   Category = "shopping"
	CategoryTransport  Category = "transport"
	CategoryOther      Category = "other"
)

// Checkpoint is a locally persisted point on a trip. TripID is empty for an
// orphan manual check-in.
type Checkpoint struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	TripID            string    `json:"trip_id,omitempty"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Timestamp         time.Time `json:"timestamp"`
	Type              Type      `json:"type"`
	Category          Category  `json:"category,omitempty"`
	PhotoAssetID      string    `json:"photo_asset_id,omitempty"`
	PhotoURL          string    `json:"photo_url,omitempty"`
	PhotoThumbnailURL string    `json:"photo_thumbnail_url,omitempty"`
	Name              string    `json:"name,omitempty"`
	Note              string    `json:"note,omitempty"`
	Address           string    `json:"address,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// TripRemoteID is the owning trip's remote document id, populated by
	// queries that join trips. Never persisted on the checkpoint row.
	TripRemoteID string `json:"-"`

	syncmeta.Meta
}
