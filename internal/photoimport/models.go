package photoimport

import (
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/checkpoint"
)

// Item is one library photo selected for import.
type Item struct {
	AssetID   string    `json:"asset_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	TakenAt   time.Time `json:"taken_at"`
	Name      string    `json:"name"`
}

// Report summarizes one import run.
type Report struct {
	TripID      string                  `json:"trip_id"`
	Imported    int                     `json:"imported"`
	Skipped     int                     `json:"skipped"`
	Checkpoints []checkpoint.Checkpoint `json:"checkpoints"`
}
