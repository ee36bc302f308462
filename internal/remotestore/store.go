package remotestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoRemoteID is returned for update calls against a record that was never
// created remotely.
var ErrNoRemoteID = errors.New("remotestore: update requires a remote id")

// Store is a user-scoped keyed document store on Redis. Documents live in
// hashes; per-user and per-trip indexes are sorted sets so list queries come
// back in a defined order without scanning.
//
// Document ids are minted client-side before the write, the same way a
// Firestore-style store hands out ids from collection.document().
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func tripKey(id string) string               { return "trip:" + id }
func userTripsKey(userID string) string      { return "user:" + userID + ":trips" }
func checkpointKey(id string) string         { return "checkpoint:" + id }
func tripCheckpointsKey(tripID string) string { return "trip:" + tripID + ":checkpoints" }
func profileKey(userID string) string        { return "user:" + userID + ":profile" }

// CreateTrip writes a new trip document and indexes it under the owner,
// scored by start date so UserTrips can range in date order.
func (s *Store) CreateTrip(ctx context.Context, rec TripRecord) (string, error) {
	id := uuid.NewString()

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, tripKey(id), rec.fields())
	pipe.ZAdd(ctx, userTripsKey(rec.UserID), redis.Z{
		Score:  float64(rec.StartDate.UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("create trip: %w", err)
	}
	return id, nil
}

// UpdateTrip merges the record's fields into an existing document. The write
// stamps updatedAt with the current time, mirroring how the remote side is
// the authority for the freshness of its own copy.
func (s *Store) UpdateTrip(ctx context.Context, id string, rec TripRecord) error {
	if id == "" {
		return ErrNoRemoteID
	}
	fields := rec.fields()
	fields["updatedAt"] = time.Now().UTC().Format(timeLayout)
	delete(fields, "createdAt")

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, tripKey(id), fields)
	pipe.ZAdd(ctx, userTripsKey(rec.UserID), redis.Z{
		Score:  float64(rec.StartDate.UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update trip %s: %w", id, err)
	}
	return nil
}

// UserTrips returns every trip document owned by the user, most recent start
// date first.
func (s *Store) UserTrips(ctx context.Context, userID string) ([]TripRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, userTripsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("user trips index: %w", err)
	}

	var recs []TripRecord
	for _, id := range ids {
		doc, err := s.rdb.HGetAll(ctx, tripKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("trip %s: %w", id, err)
		}
		if len(doc) == 0 {
			return nil, fmt.Errorf("trip %s: document missing", id)
		}
		rec, err := decodeTripRecord(id, doc)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// CreateCheckpoint writes a new checkpoint document; tripID may be empty for
// an orphan check-in, which is then reachable only by its own id.
func (s *Store) CreateCheckpoint(ctx context.Context, rec CheckpointRecord, tripID string) (string, error) {
	id := uuid.NewString()
	rec.TripID = tripID

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, checkpointKey(id), rec.fields())
	if tripID != "" {
		pipe.ZAdd(ctx, tripCheckpointsKey(tripID), redis.Z{
			Score:  float64(rec.Timestamp.UnixMilli()),
			Member: id,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("create checkpoint: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateCheckpoint(ctx context.Context, id string, rec CheckpointRecord) error {
	if id == "" {
		return ErrNoRemoteID
	}
	fields := rec.fields()
	delete(fields, "createdAt")

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, checkpointKey(id), fields)
	if rec.TripID != "" {
		pipe.ZAdd(ctx, tripCheckpointsKey(rec.TripID), redis.Z{
			Score:  float64(rec.Timestamp.UnixMilli()),
			Member: id,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update checkpoint %s: %w", id, err)
	}
	return nil
}

// BatchCreateCheckpoints writes many checkpoint documents for one trip as a
// single atomic multi-record write. Returned ids are ordered like the input.
func (s *Store) BatchCreateCheckpoints(ctx context.Context, recs []CheckpointRecord, tripID string) ([]string, error) {
	ids := make([]string, len(recs))

	pipe := s.rdb.TxPipeline()
	for i, rec := range recs {
		ids[i] = uuid.NewString()
		rec.TripID = tripID
		pipe.HSet(ctx, checkpointKey(ids[i]), rec.fields())
		if tripID != "" {
			pipe.ZAdd(ctx, tripCheckpointsKey(tripID), redis.Z{
				Score:  float64(rec.Timestamp.UnixMilli()),
				Member: ids[i],
			})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("batch create checkpoints: %w", err)
	}
	return ids, nil
}

// Checkpoints returns a trip's checkpoint documents in timestamp order.
func (s *Store) Checkpoints(ctx context.Context, tripID string) ([]CheckpointRecord, error) {
	ids, err := s.rdb.ZRange(ctx, tripCheckpointsKey(tripID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("trip checkpoints index: %w", err)
	}

	var recs []CheckpointRecord
	for _, id := range ids {
		doc, err := s.rdb.HGetAll(ctx, checkpointKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", id, err)
		}
		if len(doc) == 0 {
			return nil, fmt.Errorf("checkpoint %s: document missing", id)
		}
		rec, err := decodeCheckpointRecord(id, doc)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// UserProfile fetches the user's profile document; ok is false when none
// exists yet.
func (s *Store) UserProfile(ctx context.Context, userID string) (ProfileRecord, bool, error) {
	doc, err := s.rdb.HGetAll(ctx, profileKey(userID)).Result()
	if err != nil {
		return ProfileRecord{}, false, fmt.Errorf("profile %s: %w", userID, err)
	}
	if len(doc) == 0 {
		return ProfileRecord{}, false, nil
	}
	return decodeProfileRecord(userID, doc), true, nil
}

// SaveUserProfile writes profile fields. With merge set, existing fields not
// named here survive; without it the document is replaced.
func (s *Store) SaveUserProfile(ctx context.Context, userID string, fields map[string]string, merge bool) error {
	args := make(map[string]any, len(fields))
	for k, v := range fields {
		args[k] = v
	}

	pipe := s.rdb.TxPipeline()
	if !merge {
		pipe.Del(ctx, profileKey(userID))
	}
	pipe.HSet(ctx, profileKey(userID), args)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save profile %s: %w", userID, err)
	}
	return nil
}
