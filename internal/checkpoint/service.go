package checkpoint

import (
	"context"
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/db"
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

const checkpointColumns = `c.id, c.user_id, COALESCE(c.trip_id,''), c.latitude, c.longitude, c.recorded_at,
	       c.type, COALESCE(c.category,''), COALESCE(c.photo_asset_id,''), COALESCE(c.photo_url,''),
	       COALESCE(c.photo_thumbnail_url,''), COALESCE(c.name,''), COALESCE(c.note,''), COALESCE(c.address,''),
	       c.created_at, c.updated_at, COALESCE(c.remote_id,''), c.needs_sync, c.sync_status, c.last_synced_at`

// Create inserts a checkpoint born from a local user action: dirty, no
// remote id. An empty TripID is a valid orphan check-in.
func (s *Service) Create(ctx context.Context, input Checkpoint) (Checkpoint, error) {
	if input.Type == "" {
		input.Type = TypeManualCheckin
	}
	now := time.Now().UTC()
	input.ID = uuid.NewString()
	input.CreatedAt = now
	input.UpdatedAt = now
	if input.Timestamp.IsZero() {
		input.Timestamp = now
	}
	input.NeedsSync = true
	input.SyncStatus = syncmeta.StatusPending
	input.RemoteID = ""
	input.LastSyncedAt = time.Time{}

	_, err := s.db.Exec(ctx, `
		INSERT INTO checkpoints (id, user_id, trip_id, latitude, longitude, recorded_at, type, category,
		                         photo_asset_id, photo_url, photo_thumbnail_url, name, note, address,
		                         created_at, updated_at, remote_id, needs_sync, sync_status, last_synced_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, input.ID, input.UserID, input.TripID, input.Latitude, input.Longitude, input.Timestamp,
		string(input.Type), string(input.Category), input.PhotoAssetID, input.PhotoURL,
		input.PhotoThumbnailURL, input.Name, input.Note, input.Address,
		input.CreatedAt, input.UpdatedAt, input.RemoteID, input.NeedsSync, string(input.SyncStatus), timeOrNil(input.LastSyncedAt))
	if err != nil {
		return Checkpoint{}, err
	}
	return input, nil
}

// Update applies a local edit and marks the checkpoint pending upload.
func (s *Service) Update(ctx context.Context, id string, patch Checkpoint) (Checkpoint, error) {
	cp, err := s.Get(ctx, id)
	if err != nil {
		return Checkpoint{}, err
	}
	if patch.Latitude != 0 {
		cp.Latitude = patch.Latitude
	}
	if patch.Longitude != 0 {
		cp.Longitude = patch.Longitude
	}
	if !patch.Timestamp.IsZero() {
		cp.Timestamp = patch.Timestamp
	}
	if patch.Category != "" {
		cp.Category = patch.Category
	}
	if patch.Name != "" {
		cp.Name = patch.Name
	}
	if patch.Note != "" {
		cp.Note = patch.Note
	}
	if patch.Address != "" {
		cp.Address = patch.Address
	}

	cp.UpdatedAt = nextUpdatedAt(cp.UpdatedAt)
	cp.NeedsSync = true
	cp.SyncStatus = syncmeta.StatusPending

	_, err = s.db.Exec(ctx, `
		UPDATE checkpoints
		SET latitude=$2, longitude=$3, recorded_at=$4, category=$5, name=$6, note=$7, address=$8,
		    updated_at=$9, needs_sync=true, sync_status=$10
		WHERE id=$1
	`, cp.ID, cp.Latitude, cp.Longitude, cp.Timestamp, string(cp.Category), cp.Name, cp.Note, cp.Address,
		cp.UpdatedAt, string(cp.SyncStatus))
	if err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

func (s *Service) Get(ctx context.Context, id string) (Checkpoint, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+checkpointColumns+`
		FROM checkpoints c WHERE c.id=$1
	`, id)
	return scanCheckpoint(row)
}

func (s *Service) ListForTrip(ctx context.Context, tripID string) ([]Checkpoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+checkpointColumns+`
		FROM checkpoints c WHERE c.trip_id=$1
		ORDER BY c.recorded_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCheckpoints(rows)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM checkpoints WHERE id=$1`, id)
	return err
}

// Dirty returns the user's checkpoints awaiting upload, each joined with its
// owning trip's remote id so the upload pass can address the remote parent.
func (s *Service) Dirty(ctx context.Context, userID string) ([]Checkpoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+checkpointColumns+`, COALESCE(t.remote_id,'')
		FROM checkpoints c
		LEFT JOIN trips t ON t.id = c.trip_id
		WHERE c.user_id=$1 AND c.needs_sync
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cps []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpointWithOwner(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

func (s *Service) ByRemoteID(ctx context.Context, remoteID string) (Checkpoint, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+checkpointColumns+`
		FROM checkpoints c WHERE c.remote_id=$1
	`, remoteID)
	cp, err := scanCheckpoint(row)
	if err == pgx.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// MarkSynced acknowledges a successful remote write; the remote id is set
// only once.
func (s *Service) MarkSynced(ctx context.Context, id, remoteID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE checkpoints
		SET remote_id = COALESCE(NULLIF(remote_id,''), $2),
		    needs_sync=false, sync_status=$3, last_synced_at=$4
		WHERE id=$1
	`, id, remoteID, string(syncmeta.StatusSynced), at)
	return err
}

// SetRemoteID records the remote id without clearing the dirty flag. Used
// when checkpoint metadata synced but its photo upload still has to be
// retried on the next cycle.
func (s *Service) SetRemoteID(ctx context.Context, id, remoteID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE checkpoints
		SET remote_id = COALESCE(NULLIF(remote_id,''), $2)
		WHERE id=$1
	`, id, remoteID)
	return err
}

// SetPhotoURLs stores the blob URLs returned by a successful upload.
func (s *Service) SetPhotoURLs(ctx context.Context, id, photoURL, thumbnailURL string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE checkpoints
		SET photo_url=$2, photo_thumbnail_url=$3
		WHERE id=$1
	`, id, photoURL, thumbnailURL)
	return err
}

// ApplyRemote overwrites the checkpoint's mutable fields with the remote
// record. Only called after the conflict rule allowed it.
func (s *Service) ApplyRemote(ctx context.Context, localID string, remote Checkpoint) error {
	_, err := s.db.Exec(ctx, `
		UPDATE checkpoints
		SET latitude=$2, longitude=$3, recorded_at=$4, type=$5, category=$6,
		    photo_url=$7, photo_thumbnail_url=$8, name=$9, note=$10, address=$11,
		    updated_at=$12, needs_sync=false, sync_status=$13, last_synced_at=$14
		WHERE id=$1
	`, localID, remote.Latitude, remote.Longitude, remote.Timestamp, string(remote.Type), string(remote.Category),
		remote.PhotoURL, remote.PhotoThumbnailURL, remote.Name, remote.Note, remote.Address,
		remote.UpdatedAt, string(syncmeta.StatusSynced), time.Now().UTC())
	return err
}

// Materialize inserts a checkpoint discovered in the remote store: already
// synced, remote id pre-populated, fresh local id.
func (s *Service) Materialize(ctx context.Context, input Checkpoint) (Checkpoint, error) {
	input.ID = uuid.NewString()
	input.NeedsSync = false
	input.SyncStatus = syncmeta.StatusSynced
	input.LastSyncedAt = time.Now().UTC()
	if input.CreatedAt.IsZero() {
		input.CreatedAt = input.LastSyncedAt
	}
	if input.UpdatedAt.IsZero() {
		input.UpdatedAt = input.CreatedAt
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO checkpoints (id, user_id, trip_id, latitude, longitude, recorded_at, type, category,
		                         photo_asset_id, photo_url, photo_thumbnail_url, name, note, address,
		                         created_at, updated_at, remote_id, needs_sync, sync_status, last_synced_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, input.ID, input.UserID, input.TripID, input.Latitude, input.Longitude, input.Timestamp,
		string(input.Type), string(input.Category), input.PhotoAssetID, input.PhotoURL,
		input.PhotoThumbnailURL, input.Name, input.Note, input.Address,
		input.CreatedAt, input.UpdatedAt, input.RemoteID, input.NeedsSync, string(input.SyncStatus), input.LastSyncedAt)
	if err != nil {
		return Checkpoint{}, err
	}
	return input, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scannable) (Checkpoint, error) {
	var cp Checkpoint
	err := scanInto(row, &cp, nil)
	return cp, err
}

func scanCheckpointWithOwner(row scannable) (Checkpoint, error) {
	var cp Checkpoint
	err := scanInto(row, &cp, &cp.TripRemoteID)
	return cp, err
}

func scanInto(row scannable, cp *Checkpoint, ownerRemoteID *string) error {
	var typ, category, status string
	var lastSynced *time.Time

	dest := []any{&cp.ID, &cp.UserID, &cp.TripID, &cp.Latitude, &cp.Longitude, &cp.Timestamp,
		&typ, &category, &cp.PhotoAssetID, &cp.PhotoURL,
		&cp.PhotoThumbnailURL, &cp.Name, &cp.Note, &cp.Address,
		&cp.CreatedAt, &cp.UpdatedAt, &cp.RemoteID, &cp.NeedsSync, &status, &lastSynced}
	if ownerRemoteID != nil {
		dest = append(dest, ownerRemoteID)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}

	cp.Type = Type(typ)
	cp.Category = Category(category)
	cp.SyncStatus = syncmeta.Status(status)
	if lastSynced != nil {
		cp.LastSyncedAt = *lastSynced
	}
	return nil
}

func collectCheckpoints(rows pgx.Rows) ([]Checkpoint, error) {
	var cps []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

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
