package trip

import (
	"context"
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/db"
	"github.com/KakiharaShingo/Routy-sub000/internal/shared/geo"
	"github.com/KakiharaShingo/Routy-sub000/internal/shared/syncmeta"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

const tripColumns = `id, user_id, name, start_date, end_date, COALESCE(cover_photo_url,''), is_public,
	       created_at, updated_at, COALESCE(remote_id,''), needs_sync, sync_status, last_synced_at`

// Create inserts a trip born from a local user action: dirty, no remote id.
func (s *Service) Create(ctx context.Context, input Trip) (Trip, error) {
	now := time.Now().UTC()
	input.ID = uuid.NewString()
	input.CreatedAt = now
	input.UpdatedAt = now
	input.NeedsSync = true
	input.SyncStatus = syncmeta.StatusPending
	input.RemoteID = ""
	input.LastSyncedAt = time.Time{}

	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (id, user_id, name, start_date, end_date, cover_photo_url, is_public,
		                   created_at, updated_at, remote_id, needs_sync, sync_status, last_synced_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, input.ID, input.UserID, input.Name, input.StartDate, input.EndDate, input.CoverPhotoURL, input.IsPublic,
		input.CreatedAt, input.UpdatedAt, input.RemoteID, input.NeedsSync, string(input.SyncStatus), timeOrNil(input.LastSyncedAt))
	if err != nil {
		return Trip{}, err
	}
	return input, nil
}

// Update applies a local edit and marks the trip pending upload.
func (s *Service) Update(ctx context.Context, id string, patch Trip) (Trip, error) {
	trip, err := s.Get(ctx, id)
	if err != nil {
		return Trip{}, err
	}
	if patch.Name != "" {
		trip.Name = patch.Name
	}
	if !patch.StartDate.IsZero() {
		trip.StartDate = patch.StartDate
	}
	if !patch.EndDate.IsZero() {
		trip.EndDate = patch.EndDate
	}
	if patch.CoverPhotoURL != "" {
		trip.CoverPhotoURL = patch.CoverPhotoURL
	}
	if patch.IsPublic {
		trip.IsPublic = true
	}

	trip.UpdatedAt = nextUpdatedAt(trip.UpdatedAt)
	trip.NeedsSync = true
	trip.SyncStatus = syncmeta.StatusPending

	_, err = s.db.Exec(ctx, `
		UPDATE trips
		SET name=$2, start_date=$3, end_date=$4, cover_photo_url=$5, is_public=$6,
		    updated_at=$7, needs_sync=true, sync_status=$8
		WHERE id=$1
	`, trip.ID, trip.Name, trip.StartDate, trip.EndDate, trip.CoverPhotoURL, trip.IsPublic,
		trip.UpdatedAt, string(trip.SyncStatus))
	if err != nil {
		return Trip{}, err
	}
	return trip, nil
}

func (s *Service) Get(ctx context.Context, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+tripColumns+`
		FROM trips WHERE id=$1
	`, id)
	return scanTrip(row)
}

func (s *Service) List(ctx context.Context, userID string) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips WHERE user_id=$1
		ORDER BY start_date DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrips(rows)
}

// Delete removes a trip and its checkpoints. Deletion stays local; no
// tombstone reaches the remote store.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM checkpoints WHERE trip_id=$1`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM trips WHERE id=$1`, id)
	return err
}

// PurgeUser wipes every local row owned by the user. Used on logout.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM checkpoints WHERE user_id=$1`, userID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM trips WHERE user_id=$1`, userID)
	return err
}

// Dirty returns the user's trips awaiting upload.
func (s *Service) Dirty(ctx context.Context, userID string) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips WHERE user_id=$1 AND needs_sync
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrips(rows)
}

// ByRemoteID looks a trip up by its remote document id.
func (s *Service) ByRemoteID(ctx context.Context, remoteID string) (Trip, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+tripColumns+`
		FROM trips WHERE remote_id=$1
	`, remoteID)
	trip, err := scanTrip(row)
	if err == pgx.ErrNoRows {
		return Trip{}, false, nil
	}
	if err != nil {
		return Trip{}, false, err
	}
	return trip, true, nil
}

// MarkSynced acknowledges a successful remote write. The remote id is set
// only if the trip has none yet; once assigned it never changes.
func (s *Service) MarkSynced(ctx context.Context, id, remoteID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE trips
		SET remote_id = COALESCE(NULLIF(remote_id,''), $2),
		    needs_sync=false, sync_status=$3, last_synced_at=$4
		WHERE id=$1
	`, id, remoteID, string(syncmeta.StatusSynced), at)
	return err
}

// ApplyRemote overwrites the trip's mutable fields with the remote record.
// Only called after the conflict rule allowed it.
func (s *Service) ApplyRemote(ctx context.Context, localID string, remote Trip) error {
	_, err := s.db.Exec(ctx, `
		UPDATE trips
		SET name=$2, start_date=$3, end_date=$4, cover_photo_url=$5, is_public=$6,
		    updated_at=$7, needs_sync=false, sync_status=$8, last_synced_at=$9
		WHERE id=$1
	`, localID, remote.Name, remote.StartDate, remote.EndDate, remote.CoverPhotoURL, remote.IsPublic,
		remote.UpdatedAt, string(syncmeta.StatusSynced), time.Now().UTC())
	return err
}

// Materialize inserts a trip discovered in the remote store: already synced,
// remote id pre-populated, fresh local id.
func (s *Service) Materialize(ctx context.Context, input Trip) (Trip, error) {
	input.ID = uuid.NewString()
	input.NeedsSync = false
	input.SyncStatus = syncmeta.StatusSynced
	input.LastSyncedAt = time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (id, user_id, name, start_date, end_date, cover_photo_url, is_public,
		                   created_at, updated_at, remote_id, needs_sync, sync_status, last_synced_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, input.ID, input.UserID, input.Name, input.StartDate, input.EndDate, input.CoverPhotoURL, input.IsPublic,
		input.CreatedAt, input.UpdatedAt, input.RemoteID, input.NeedsSync, string(input.SyncStatus), input.LastSyncedAt)
	if err != nil {
		return Trip{}, err
	}
	return input, nil
}

// Stats walks the trip's checkpoints in timestamp order and sums the
// great-circle distance between consecutive points.
func (s *Service) Stats(ctx context.Context, tripID string) (RouteStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT latitude, longitude
		FROM checkpoints WHERE trip_id=$1
		ORDER BY recorded_at
	`, tripID)
	if err != nil {
		return RouteStats{}, err
	}
	defer rows.Close()

	stats := RouteStats{TripID: tripID}
	var prevLat, prevLng float64
	for rows.Next() {
		var lat, lng float64
		if err := rows.Scan(&lat, &lng); err != nil {
			return RouteStats{}, err
		}
		if stats.CheckpointCount > 0 {
			stats.TotalDistanceKm += geo.HaversineKm(prevLat, prevLng, lat, lng)
		}
		prevLat, prevLng = lat, lng
		stats.CheckpointCount++
	}
	return stats, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTrip(row scannable) (Trip, error) {
	var t Trip
	var status string
	var lastSynced *time.Time
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.StartDate, &t.EndDate, &t.CoverPhotoURL, &t.IsPublic,
		&t.CreatedAt, &t.UpdatedAt, &t.RemoteID, &t.NeedsSync, &status, &lastSynced)
	if err != nil {
		return Trip{}, err
	}
	t.SyncStatus = syncmeta.Status(status)
	if lastSynced != nil {
		t.LastSyncedAt = *lastSynced
	}
	return t, nil
}

func collectTrips(rows pgx.Rows) ([]Trip, error) {
	var trips []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// nextUpdatedAt keeps updated_at strictly increasing even when the clock
// has not advanced past the previous mutation.
func nextUpdatedAt(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
