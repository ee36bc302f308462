package sync

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/assets"
	"github.com/KakiharaShingo/Routy-sub000/internal/blobstore"
	"github.com/KakiharaShingo/Routy-sub000/internal/checkpoint"
	"github.com/KakiharaShingo/Routy-sub000/internal/remotestore"
	"github.com/KakiharaShingo/Routy-sub000/internal/stream"
	"github.com/KakiharaShingo/Routy-sub000/internal/trip"
)

// TripStore is the slice of the trip service the engine drives.
type TripStore interface {
	Dirty(ctx context.Context, userID string) ([]trip.Trip, error)
	MarkSynced(ctx context.Context, id, remoteID string, at time.Time) error
	ByRemoteID(ctx context.Context, remoteID string) (trip.Trip, bool, error)
	ApplyRemote(ctx context.Context, localID string, remote trip.Trip) error
	Materialize(ctx context.Context, input trip.Trip) (trip.Trip, error)
}

// CheckpointStore is the slice of the checkpoint service the engine drives.
type CheckpointStore interface {
	Dirty(ctx context.Context, userID string) ([]checkpoint.Checkpoint, error)
	MarkSynced(ctx context.Context, id, remoteID string, at time.Time) error
	SetRemoteID(ctx context.Context, id, remoteID string) error
	SetPhotoURLs(ctx context.Context, id, photoURL, thumbnailURL string) error
	ByRemoteID(ctx context.Context, remoteID string) (checkpoint.Checkpoint, bool, error)
	ApplyRemote(ctx context.Context, localID string, remote checkpoint.Checkpoint) error
	Materialize(ctx context.Context, input checkpoint.Checkpoint) (checkpoint.Checkpoint, error)
}

// Remote is the document store the engine syncs against.
type Remote interface {
	CreateTrip(ctx context.Context, rec remotestore.TripRecord) (string, error)
	UpdateTrip(ctx context.Context, id string, rec remotestore.TripRecord) error
	UserTrips(ctx context.Context, userID string) ([]remotestore.TripRecord, error)
	CreateCheckpoint(ctx context.Context, rec remotestore.CheckpointRecord, tripID string) (string, error)
	UpdateCheckpoint(ctx context.Context, id string, rec remotestore.CheckpointRecord) error
	BatchCreateCheckpoints(ctx context.Context, recs []remotestore.CheckpointRecord, tripID string) ([]string, error)
	Checkpoints(ctx context.Context, tripID string) ([]remotestore.CheckpointRecord, error)
	UserProfile(ctx context.Context, userID string) (remotestore.ProfileRecord, bool, error)
}

// BlobStore uploads photo bytes and returns stable URLs.
type BlobStore interface {
	UploadPhoto(ctx context.Context, data []byte, userID, photoID string, tier blobstore.Tier) (string, error)
	UploadThumbnail(ctx context.Context, data []byte, userID, photoID string) (string, error)
}

// Gate answers who, if anyone, is signed in.
type Gate interface {
	CurrentUserID() string
	IsAuthenticated() bool
}

// Publisher receives sync lifecycle events. *stream.Hub implements it.
type Publisher interface {
	Publish(userID string, ev stream.Event)
}

// Syncer drives one full sync cycle: upload local dirty records, then pull
// remote state down. A cycle is single-flight per process; concurrent callers
// are turned away, not queued.
type Syncer struct {
	trips       TripStore
	checkpoints CheckpointStore
	remote      Remote
	blobs       BlobStore
	assets      assets.Resolver
	gate        Gate
	events      Publisher

	running atomic.Bool

	mu   sync.Mutex
	last *Result
}

func NewSyncer(trips TripStore, checkpoints CheckpointStore, remote Remote, blobs BlobStore, resolver assets.Resolver, gate Gate, events Publisher) *Syncer {
	return &Syncer{
		trips:       trips,
		checkpoints: checkpoints,
		remote:      remote,
		blobs:       blobs,
		assets:      resolver,
		gate:        gate,
		events:      events,
	}
}

// LastResult returns the most recent terminal sync result, or nil if no
// cycle has run yet.
func (s *Syncer) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	out := *s.last
	return &out
}

// Sync runs one full cycle for userID. Upload runs before download so this
// device's own edits are pushed, and their dirty flags cleared, before remote
// state is evaluated against them.
func (s *Syncer) Sync(ctx context.Context, userID string) Result {
	if !s.gate.IsAuthenticated() || s.gate.CurrentUserID() != userID {
		return Result{State: StateUnauthenticated}
	}
	if !s.running.CompareAndSwap(false, true) {
		return Result{State: StateAlreadyRunning, UserID: userID}
	}
	defer s.running.Store(false)

	res := Result{UserID: userID, StartedAt: time.Now().UTC()}
	s.publish(userID, stream.Event{Type: stream.EventSyncStarted})

	if err := s.uploadPass(ctx, userID, &res); err != nil {
		return s.fail(res, err)
	}
	if err := s.downloadPass(ctx, userID, &res); err != nil {
		return s.fail(res, err)
	}

	res.State = StateCompleted
	res.FinishedAt = time.Now().UTC()
	s.record(res)
	s.publish(userID, stream.Event{
		Type:       stream.EventSyncCompleted,
		Uploaded:   res.UploadedTrips + res.UploadedCheckpoints,
		Downloaded: res.DownloadedTrips + res.DownloadedCheckpoints,
	})
	return res
}

func (s *Syncer) uploadPass(ctx context.Context, userID string, res *Result) error {
	dirtyTrips, err := s.trips.Dirty(ctx, userID)
	if err != nil {
		return err
	}
	for _, t := range dirtyTrips {
		rec := tripRecord(t)
		remoteID := t.RemoteID
		if remoteID == "" {
			remoteID, err = s.remote.CreateTrip(ctx, rec)
		} else {
			err = s.remote.UpdateTrip(ctx, remoteID, rec)
		}
		if err != nil {
			return err
		}
		if err := s.trips.MarkSynced(ctx, t.ID, remoteID, time.Now().UTC()); err != nil {
			return err
		}
		res.UploadedTrips++
	}

	// Queried after the trip loop so checkpoints of just-created trips see
	// their owner's fresh remote id.
	dirty, err := s.checkpoints.Dirty(ctx, userID)
	if err != nil {
		return err
	}
	if len(dirty) == 0 {
		return nil
	}

	tier, err := s.photoTier(ctx, userID)
	if err != nil {
		return err
	}

	photoFailed := make(map[string]bool)
	for i := range dirty {
		cp := &dirty[i]
		if cp.PhotoAssetID == "" || cp.PhotoURL != "" {
			continue
		}
		photoURL, thumbURL, err := s.uploadPhoto(ctx, userID, cp.PhotoAssetID, tier)
		if err != nil {
			// Non-fatal: metadata still syncs, the dirty flag stays set
			// so the photo is retried next cycle.
			log.Printf("photo upload for checkpoint %s: %v", cp.ID, err)
			photoFailed[cp.ID] = true
			res.PhotoFailures++
			continue
		}
		if err := s.checkpoints.SetPhotoURLs(ctx, cp.ID, photoURL, thumbURL); err != nil {
			return err
		}
		cp.PhotoURL = photoURL
		cp.PhotoThumbnailURL = thumbURL
	}

	// New checkpoints that share a trip go up as one atomic batch write.
	newByTrip := map[string][]int{}
	for i, cp := range dirty {
		switch {
		case cp.RemoteID != "":
			if err := s.remote.UpdateCheckpoint(ctx, cp.RemoteID, checkpointRecord(cp)); err != nil {
				return err
			}
			if err := s.ackCheckpoint(ctx, cp.ID, cp.RemoteID, photoFailed[cp.ID]); err != nil {
				return err
			}
			res.UploadedCheckpoints++
		case cp.TripRemoteID == "":
			remoteID, err := s.remote.CreateCheckpoint(ctx, checkpointRecord(cp), "")
			if err != nil {
				return err
			}
			if err := s.ackCheckpoint(ctx, cp.ID, remoteID, photoFailed[cp.ID]); err != nil {
				return err
			}
			res.UploadedCheckpoints++
		default:
			newByTrip[cp.TripRemoteID] = append(newByTrip[cp.TripRemoteID], i)
		}
	}

	for tripRemoteID, indexes := range newByTrip {
		recs := make([]remotestore.CheckpointRecord, 0, len(indexes))
		for _, i := range indexes {
			recs = append(recs, checkpointRecord(dirty[i]))
		}
		remoteIDs, err := s.remote.BatchCreateCheckpoints(ctx, recs, tripRemoteID)
		if err != nil {
			return err
		}
		for n, i := range indexes {
			cp := dirty[i]
			if err := s.ackCheckpoint(ctx, cp.ID, remoteIDs[n], photoFailed[cp.ID]); err != nil {
				return err
			}
			res.UploadedCheckpoints++
		}
	}
	return nil
}

// ackCheckpoint records the outcome of a checkpoint's remote write. A failed
// photo keeps the record dirty so the next cycle retries the upload without
// re-creating the remote document.
func (s *Syncer) ackCheckpoint(ctx context.Context, id, remoteID string, photoFailed bool) error {
	if photoFailed {
		return s.checkpoints.SetRemoteID(ctx, id, remoteID)
	}
	return s.checkpoints.MarkSynced(ctx, id, remoteID, time.Now().UTC())
}

func (s *Syncer) photoTier(ctx context.Context, userID string) (blobstore.Tier, error) {
	profile, ok, err := s.remote.UserProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if ok && profile.IsPremium {
		return blobstore.TierOriginal, nil
	}
	return blobstore.TierCompressed, nil
}

func (s *Syncer) uploadPhoto(ctx context.Context, userID, assetID string, tier blobstore.Tier) (string, string, error) {
	data, err := s.assets.FetchImage(ctx, assetID)
	if err != nil {
		return "", "", err
	}
	photoURL, err := s.blobs.UploadPhoto(ctx, data, userID, assetID, tier)
	if err != nil {
		return "", "", err
	}
	thumbURL, err := s.blobs.UploadThumbnail(ctx, data, userID, assetID)
	if err != nil {
		return "", "", err
	}
	return photoURL, thumbURL, nil
}

func (s *Syncer) downloadPass(ctx context.Context, userID string, res *Result) error {
	remoteTrips, err := s.remote.UserTrips(ctx, userID)
	if err != nil {
		return err
	}

	for _, rt := range remoteTrips {
		local, found, err := s.trips.ByRemoteID(ctx, rt.ID)
		if err != nil {
			return err
		}

		if found {
			if ApplyRemote(local.UpdatedAt, local.NeedsSync, rt.UpdatedAt) {
				if err := s.trips.ApplyRemote(ctx, local.ID, tripFromRecord(rt)); err != nil {
					return err
				}
				res.DownloadedTrips++
			}
			continue
		}

		materialized, err := s.trips.Materialize(ctx, tripFromRecord(rt))
		if err != nil {
			return err
		}
		res.DownloadedTrips++

		if err := s.downloadCheckpoints(ctx, rt.ID, materialized.ID, res); err != nil {
			return err
		}
	}
	return nil
}

// downloadCheckpoints pulls a newly discovered trip's checkpoints. A record
// already present locally (from an aborted earlier cycle) is merged through
// the conflict rule instead of duplicated.
func (s *Syncer) downloadCheckpoints(ctx context.Context, tripRemoteID, localTripID string, res *Result) error {
	recs, err := s.remote.Checkpoints(ctx, tripRemoteID)
	if err != nil {
		return err
	}
	for _, rc := range recs {
		local, found, err := s.checkpoints.ByRemoteID(ctx, rc.ID)
		if err != nil {
			return err
		}
		if found {
			if ApplyRemote(local.UpdatedAt, local.NeedsSync, rc.UpdatedAt) {
				if err := s.checkpoints.ApplyRemote(ctx, local.ID, checkpointFromRecord(rc, local.TripID)); err != nil {
					return err
				}
				res.DownloadedCheckpoints++
			}
			continue
		}
		if _, err := s.checkpoints.Materialize(ctx, checkpointFromRecord(rc, localTripID)); err != nil {
			return err
		}
		res.DownloadedCheckpoints++
	}
	return nil
}

func (s *Syncer) fail(res Result, err error) Result {
	res.State = StateFailed
	res.Err = err.Error()
	res.FinishedAt = time.Now().UTC()
	s.record(res)
	s.publish(res.UserID, stream.Event{Type: stream.EventSyncFailed, Error: res.Err})
	return res
}

func (s *Syncer) record(res Result) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
}

func (s *Syncer) publish(userID string, ev stream.Event) {
	if s.events != nil {
		s.events.Publish(userID, ev)
	}
}

func tripRecord(t trip.Trip) remotestore.TripRecord {
	return remotestore.TripRecord{
		ID:            t.RemoteID,
		UserID:        t.UserID,
		Name:          t.Name,
		StartDate:     t.StartDate,
		EndDate:       t.EndDate,
		CoverPhotoURL: t.CoverPhotoURL,
		IsPublic:      t.IsPublic,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func tripFromRecord(rec remotestore.TripRecord) trip.Trip {
	t := trip.Trip{
		UserID:        rec.UserID,
		Name:          rec.Name,
		StartDate:     rec.StartDate,
		EndDate:       rec.EndDate,
		CoverPhotoURL: rec.CoverPhotoURL,
		IsPublic:      rec.IsPublic,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	t.RemoteID = rec.ID
	return t
}

func checkpointRecord(cp checkpoint.Checkpoint) remotestore.CheckpointRecord {
	return remotestore.CheckpointRecord{
		ID:                cp.RemoteID,
		UserID:            cp.UserID,
		TripID:            cp.TripRemoteID,
		Latitude:          cp.Latitude,
		Longitude:         cp.Longitude,
		Timestamp:         cp.Timestamp,
		Type:              string(cp.Type),
		Category:          string(cp.Category),
		PhotoAssetID:      cp.PhotoAssetID,
		PhotoURL:          cp.PhotoURL,
		PhotoThumbnailURL: cp.PhotoThumbnailURL,
		Name:              cp.Name,
		Note:              cp.Note,
		Address:           cp.Address,
		CreatedAt:         cp.CreatedAt,
		UpdatedAt:         cp.UpdatedAt,
	}
}

func checkpointFromRecord(rec remotestore.CheckpointRecord, localTripID string) checkpoint.Checkpoint {
	cp := checkpoint.Checkpoint{
		UserID:            rec.UserID,
		TripID:            localTripID,
		Latitude:          rec.Latitude,
		Longitude:         rec.Longitude,
		Timestamp:         rec.Timestamp,
		Type:              checkpoint.Type(rec.Type),
		Category:          checkpoint.Category(rec.Category),
		PhotoAssetID:      rec.PhotoAssetID,
		PhotoURL:          rec.PhotoURL,
		PhotoThumbnailURL: rec.PhotoThumbnailURL,
		Name:              rec.Name,
		Note:              rec.Note,
		Address:           rec.Address,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
	cp.RemoteID = rec.ID
	return cp
}
