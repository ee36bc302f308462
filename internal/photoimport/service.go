package photoimport

import (
	"context"
	"errors"
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/assets"
	"github.com/KakiharaShingo/Routy-sub000/internal/checkpoint"
)

// CheckpointCreator is the slice of the checkpoint service an import needs.
type CheckpointCreator interface {
	Create(ctx context.Context, input checkpoint.Checkpoint) (checkpoint.Checkpoint, error)
}

// Service turns library photos into photo checkpoints on a trip. Created
// checkpoints are dirty and get uploaded by the next sync cycle.
type Service struct {
	checkpoints CheckpointCreator
	resolver    assets.Resolver
}

// NewService builds an import service. resolver may be nil, in which case
// asset existence is not checked.
func NewService(checkpoints CheckpointCreator, resolver assets.Resolver) *Service {
	return &Service{checkpoints: checkpoints, resolver: resolver}
}

// Import creates a photo checkpoint per usable item. Items without an asset
// id, and items whose asset no longer exists in the library, are skipped
// rather than failing the whole batch.
func (s *Service) Import(ctx context.Context, userID, tripID string, items []Item) (Report, error) {
	report := Report{TripID: tripID}

	for _, item := range items {
		if item.AssetID == "" {
			report.Skipped++
			continue
		}
		if s.resolver != nil {
			if _, err := s.resolver.FetchImage(ctx, item.AssetID); err != nil {
				if errors.Is(err, assets.ErrAssetNotFound) {
					report.Skipped++
					continue
				}
				return Report{}, err
			}
		}

		takenAt := item.TakenAt
		if takenAt.IsZero() {
			takenAt = time.Now()
		}

		cp, err := s.checkpoints.Create(ctx, checkpoint.Checkpoint{
			UserID:       userID,
			TripID:       tripID,
			Latitude:     item.Latitude,
			Longitude:    item.Longitude,
			Timestamp:    takenAt,
			Type:         checkpoint.TypePhoto,
			Category:     checkpoint.CategoryOther,
			PhotoAssetID: item.AssetID,
			Name:         item.Name,
		})
		if err != nil {
			return Report{}, err
		}

		report.Imported++
		report.Checkpoints = append(report.Checkpoints, cp)
	}

	return report, nil
}
