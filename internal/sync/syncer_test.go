package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/assets"
	"github.com/KakiharaShingo/Routy-sub000/internal/blobstore"
	"github.com/KakiharaShingo/Routy-sub000/internal/checkpoint"
	"github.com/KakiharaShingo/Routy-sub000/internal/remotestore"
	"github.com/KakiharaShingo/Routy-sub000/internal/stream"
	"github.com/KakiharaShingo/Routy-sub000/internal/trip"
)

// in-memory fakes

type fakeTrips struct {
	mu   sync.Mutex
	seq  int
	byID map[string]trip.Trip
}

func newFakeTrips() *fakeTrips {
	return &fakeTrips{byID: map[string]trip.Trip{}}
}

func (f *fakeTrips) nextID() string {
	f.seq++
	return fmt.Sprintf("local-trip-%d", f.seq)
}

func (f *fakeTrips) put(t trip.Trip) {
	f.mu.Lock()
	f.byID[t.ID] = t
	f.mu.Unlock()
}

func (f *fakeTrips) get(id string) trip.Trip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeTrips) Dirty(_ context.Context, userID string) ([]trip.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []trip.Trip
	for _, t := range f.byID {
		if t.UserID == userID && t.NeedsSync {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTrips) MarkSynced(_ context.Context, id, remoteID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.byID[id]
	if t.RemoteID == "" {
		t.RemoteID = remoteID
	}
	t.NeedsSync = false
	t.LastSyncedAt = at
	f.byID[id] = t
	return nil
}

func (f *fakeTrips) ByRemoteID(_ context.Context, remoteID string) (trip.Trip, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.RemoteID == remoteID {
			return t, true, nil
		}
	}
	return trip.Trip{}, false, nil
}

func (f *fakeTrips) ApplyRemote(_ context.Context, localID string, remote trip.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.byID[localID]
	t.Name = remote.Name
	t.StartDate = remote.StartDate
	t.EndDate = remote.EndDate
	t.CoverPhotoURL = remote.CoverPhotoURL
	t.IsPublic = remote.IsPublic
	t.UpdatedAt = remote.UpdatedAt
	t.NeedsSync = false
	f.byID[localID] = t
	return nil
}

func (f *fakeTrips) Materialize(_ context.Context, input trip.Trip) (trip.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	input.ID = f.nextID()
	input.NeedsSync = false
	f.byID[input.ID] = input
	return input, nil
}

type fakeCheckpoints struct {
	mu    sync.Mutex
	seq   int
	byID  map[string]checkpoint.Checkpoint
	trips *fakeTrips
}

func newFakeCheckpoints(trips *fakeTrips) *fakeCheckpoints {
	return &fakeCheckpoints{byID: map[string]checkpoint.Checkpoint{}, trips: trips}
}

func (f *fakeCheckpoints) put(cp checkpoint.Checkpoint) {
	f.mu.Lock()
	f.byID[cp.ID] = cp
	f.mu.Unlock()
}

func (f *fakeCheckpoints) get(id string) checkpoint.Checkpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeCheckpoints) Dirty(_ context.Context, userID string) ([]checkpoint.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []checkpoint.Checkpoint
	for _, cp := range f.byID {
		if cp.UserID != userID || !cp.NeedsSync {
			continue
		}
		if cp.TripID != "" {
			cp.TripRemoteID = f.trips.get(cp.TripID).RemoteID
		}
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeCheckpoints) MarkSynced(_ context.Context, id, remoteID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.byID[id]
	if cp.RemoteID == "" {
		cp.RemoteID = remoteID
	}
	cp.NeedsSync = false
	cp.LastSyncedAt = at
	f.byID[id] = cp
	return nil
}

func (f *fakeCheckpoints) SetRemoteID(_ context.Context, id, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.byID[id]
	if cp.RemoteID == "" {
		cp.RemoteID = remoteID
	}
	f.byID[id] = cp
	return nil
}

func (f *fakeCheckpoints) SetPhotoURLs(_ context.Context, id, photoURL, thumbnailURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.byID[id]
	cp.PhotoURL = photoURL
	cp.PhotoThumbnailURL = thumbnailURL
	f.byID[id] = cp
	return nil
}

func (f *fakeCheckpoints) ByRemoteID(_ context.Context, remoteID string) (checkpoint.Checkpoint, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cp := range f.byID {
		if cp.RemoteID == remoteID {
			return cp, true, nil
		}
	}
	return checkpoint.Checkpoint{}, false, nil
}

func (f *fakeCheckpoints) ApplyRemote(_ context.Context, localID string, remote checkpoint.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.byID[localID]
	cp.Latitude = remote.Latitude
	cp.Longitude = remote.Longitude
	cp.Name = remote.Name
	cp.Note = remote.Note
	cp.UpdatedAt = remote.UpdatedAt
	cp.NeedsSync = false
	f.byID[localID] = cp
	return nil
}

func (f *fakeCheckpoints) Materialize(_ context.Context, input checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	input.ID = fmt.Sprintf("local-cp-%d", f.seq)
	input.NeedsSync = false
	f.byID[input.ID] = input
	return input, nil
}

type fakeRemote struct {
	mu          sync.Mutex
	seq         int
	trips       map[string]remotestore.TripRecord
	tripOrder   []string
	checkpoints map[string]remotestore.CheckpointRecord
	index       map[string][]string
	profile     remotestore.ProfileRecord
	hasProfile  bool

	createTripCalls       int
	updateTripCalls       int
	createCheckpointCalls int
	batchSizes            []int

	blockUserTrips chan struct{}
	failUserTrips  error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		trips:       map[string]remotestore.TripRecord{},
		checkpoints: map[string]remotestore.CheckpointRecord{},
		index:       map[string][]string{},
	}
}

func (f *fakeRemote) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeRemote) CreateTrip(_ context.Context, rec remotestore.TripRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createTripCalls++
	id := f.nextID("rtrip")
	rec.ID = id
	f.trips[id] = rec
	f.tripOrder = append(f.tripOrder, id)
	return id, nil
}

func (f *fakeRemote) UpdateTrip(_ context.Context, id string, rec remotestore.TripRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		return remotestore.ErrNoRemoteID
	}
	f.updateTripCalls++
	rec.ID = id
	rec.UpdatedAt = time.Now().UTC()
	f.trips[id] = rec
	return nil
}

func (f *fakeRemote) UserTrips(_ context.Context, userID string) ([]remotestore.TripRecord, error) {
	if f.blockUserTrips != nil {
		<-f.blockUserTrips
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUserTrips != nil {
		return nil, f.failUserTrips
	}
	var out []remotestore.TripRecord
	for _, id := range f.tripOrder {
		if f.trips[id].UserID == userID {
			out = append(out, f.trips[id])
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateCheckpoint(_ context.Context, rec remotestore.CheckpointRecord, tripID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCheckpointCalls++
	id := f.nextID("rcp")
	rec.ID = id
	f.checkpoints[id] = rec
	if tripID != "" {
		f.index[tripID] = append(f.index[tripID], id)
	}
	return id, nil
}

func (f *fakeRemote) UpdateCheckpoint(_ context.Context, id string, rec remotestore.CheckpointRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		return remotestore.ErrNoRemoteID
	}
	rec.ID = id
	rec.UpdatedAt = time.Now().UTC()
	f.checkpoints[id] = rec
	return nil
}

func (f *fakeRemote) BatchCreateCheckpoints(_ context.Context, recs []remotestore.CheckpointRecord, tripID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchSizes = append(f.batchSizes, len(recs))
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		id := f.nextID("rcp")
		rec.ID = id
		f.checkpoints[id] = rec
		f.index[tripID] = append(f.index[tripID], id)
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRemote) Checkpoints(_ context.Context, tripID string) ([]remotestore.CheckpointRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remotestore.CheckpointRecord
	for _, id := range f.index[tripID] {
		out = append(out, f.checkpoints[id])
	}
	return out, nil
}

func (f *fakeRemote) UserProfile(_ context.Context, _ string) (remotestore.ProfileRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.hasProfile, nil
}

type fakeBlobs struct {
	mu       sync.Mutex
	lastTier blobstore.Tier
	uploads  int
	fail     error
}

func (f *fakeBlobs) UploadPhoto(_ context.Context, _ []byte, userID, photoID string, tier blobstore.Tier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.lastTier = tier
	f.uploads++
	return "https://blobs/" + userID + "/" + photoID + ".jpg", nil
}

func (f *fakeBlobs) UploadThumbnail(_ context.Context, _ []byte, userID, photoID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	return "https://blobs/" + userID + "/" + photoID + "_thumb.jpg", nil
}

type fakeAssets struct {
	mu   sync.Mutex
	byID map[string][]byte
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{byID: map[string][]byte{}}
}

func (f *fakeAssets) add(id string) {
	f.mu.Lock()
	f.byID[id] = []byte("jpeg")
	f.mu.Unlock()
}

func (f *fakeAssets) FetchImage(_ context.Context, assetID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.byID[assetID]
	if !ok {
		return nil, assets.ErrAssetNotFound
	}
	return data, nil
}

type fakeGate struct{ userID string }

func (g *fakeGate) CurrentUserID() string { return g.userID }
func (g *fakeGate) IsAuthenticated() bool { return g.userID != "" }

type eventRecorder struct {
	mu     sync.Mutex
	events []stream.Event
}

func (r *eventRecorder) Publish(_ string, ev stream.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type world struct {
	trips       *fakeTrips
	checkpoints *fakeCheckpoints
	remote      *fakeRemote
	blobs       *fakeBlobs
	assets      *fakeAssets
	gate        *fakeGate
	events      *eventRecorder
	syncer      *Syncer
}

func newWorld(userID string) *world {
	w := &world{
		trips:  newFakeTrips(),
		remote: newFakeRemote(),
		blobs:  &fakeBlobs{},
		assets: newFakeAssets(),
		gate:   &fakeGate{userID: userID},
		events: &eventRecorder{},
	}
	w.checkpoints = newFakeCheckpoints(w.trips)
	w.syncer = NewSyncer(w.trips, w.checkpoints, w.remote, w.blobs, w.assets, w.gate, w.events)
	return w
}

func dirtyTrip(id, userID, name string, updatedAt time.Time) trip.Trip {
	t := trip.Trip{
		ID:        id,
		UserID:    userID,
		Name:      name,
		StartDate: updatedAt.Add(-24 * time.Hour),
		EndDate:   updatedAt,
		CreatedAt: updatedAt.Add(-24 * time.Hour),
		UpdatedAt: updatedAt,
	}
	t.NeedsSync = true
	return t
}

// tests

func TestSyncUnauthenticated(t *testing.T) {
	w := newWorld("")
	if res := w.syncer.Sync(context.Background(), "user-1"); res.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", res.State)
	}

	w = newWorld("user-2")
	if res := w.syncer.Sync(context.Background(), "user-1"); res.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated for mismatched user, got %s", res.State)
	}
}

func TestSyncUploadsNewTripAndCheckpoints(t *testing.T) {
	w := newWorld("user-1")
	now := time.Now().UTC()
	w.trips.put(dirtyTrip("t1", "user-1", "Kyoto", now))

	for i := 0; i < 2; i++ {
		cp := checkpoint.Checkpoint{
			ID:        fmt.Sprintf("c%d", i+1),
			UserID:    "user-1",
			TripID:    "t1",
			Latitude:  35.0 + float64(i),
			Longitude: 135.0,
			Timestamp: now,
			Type:      checkpoint.TypeManualCheckin,
			UpdatedAt: now,
		}
		cp.NeedsSync = true
		w.checkpoints.put(cp)
	}

	res := w.syncer.Sync(context.Background(), "user-1")
	if res.State != StateCompleted {
		t.Fatalf("sync failed: %+v", res)
	}
	if res.UploadedTrips != 1 || res.UploadedCheckpoints != 2 {
		t.Fatalf("unexpected counters: %+v", res)
	}

	local := w.trips.get("t1")
	if local.NeedsSync || local.RemoteID == "" {
		t.Fatalf("trip not acknowledged: %+v", local)
	}
	for _, id := range []string{"c1", "c2"} {
		cp := w.checkpoints.get(id)
		if cp.NeedsSync || cp.RemoteID == "" {
			t.Fatalf("checkpoint %s not acknowledged: %+v", id, cp)
		}
	}

	// both new checkpoints of the same trip must go up as one batch
	if len(w.remote.batchSizes) != 1 || w.remote.batchSizes[0] != 2 {
		t.Fatalf("expected one batch of 2, got %v", w.remote.batchSizes)
	}
	if w.remote.createCheckpointCalls != 0 {
		t.Fatalf("expected no individual creates")
	}

	types := w.events.types()
	if len(types) != 2 || types[0] != stream.EventSyncStarted || types[1] != stream.EventSyncCompleted {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	w := newWorld("user-1")
	now := time.Now().UTC()
	w.trips.put(dirtyTrip("t1", "user-1", "Kyoto", now))

	first := w.syncer.Sync(context.Background(), "user-1")
	if first.State != StateCompleted {
		t.Fatalf("first sync: %+v", first)
	}

	createsAfterFirst := w.remote.createTripCalls
	second := w.syncer.Sync(context.Background(), "user-1")
	if second.State != StateCompleted {
		t.Fatalf("second sync: %+v", second)
	}
	if second.UploadedTrips != 0 || second.UploadedCheckpoints != 0 ||
		second.DownloadedTrips != 0 || second.DownloadedCheckpoints != 0 {
		t.Fatalf("second cycle wrote records: %+v", second)
	}
	if w.remote.createTripCalls != createsAfterFirst {
		t.Fatalf("second cycle re-created remote trips")
	}
}

func TestSyncMaterializesRemoteTripWithCheckpoints(t *testing.T) {
	w := newWorld("user-1")
	now := time.Now().UTC()

	remoteID, _ := w.remote.CreateTrip(context.Background(), remotestore.TripRecord{
		UserID: "user-1", Name: "Osaka", StartDate: now.Add(-time.Hour), EndDate: now,
		CreatedAt: now, UpdatedAt: now,
	})
	for i := 0; i < 3; i++ {
		_, _ = w.remote.CreateCheckpoint(context.Background(), remotestore.CheckpointRecord{
			UserID: "user-1", TripID: remoteID, Latitude: float64(i), Longitude: 1,
			Timestamp: now, Type: "manualCheckin", UpdatedAt: now,
		}, remoteID)
	}

	res := w.syncer.Sync(context.Background(), "user-1")
	if res.State != StateCompleted {
		t.Fatalf("sync failed: %+v", res)
	}
	if res.DownloadedTrips != 1 || res.DownloadedCheckpoints != 3 {
		t.Fatalf("unexpected counters: %+v", res)
	}

	local, found, _ := w.trips.ByRemoteID(context.Background(), remoteID)
	if !found || local.NeedsSync {
		t.Fatalf("materialized trip missing or dirty: %+v", local)
	}
	for _, cp := range w.checkpoints.byID {
		if cp.TripID != local.ID || cp.NeedsSync {
			t.Fatalf("materialized checkpoint wrong: %+v", cp)
		}
	}
}

func TestDownloadPassPreservesDirtyLocal(t *testing.T) {
	w := newWorld("user-1")
	older := time.Now().UTC().Add(-time.Hour)

	local := dirtyTrip("t1", "user-1", "my edited name", older)
	local.RemoteID = "rtrip-9"
	w.trips.put(local)

	w.remote.trips["rtrip-9"] = remotestore.TripRecord{
		ID: "rtrip-9", UserID: "user-1", Name: "other device name",
		StartDate: older, EndDate: older, CreatedAt: older, UpdatedAt: time.Now().UTC(),
	}
	w.remote.tripOrder = append(w.remote.tripOrder, "rtrip-9")

	var res Result
	if err := w.syncer.downloadPass(context.Background(), "user-1", &res); err != nil {
		t.Fatalf("download pass: %v", err)
	}

	after := w.trips.get("t1")
	if after.Name != "my edited name" || !after.NeedsSync {
		t.Fatalf("dirty local was altered by download: %+v", after)
	}
	if res.DownloadedTrips != 0 {
		t.Fatalf("expected no downloads, got %+v", res)
	}
}

func TestSyncAppliesNewerRemoteToCleanLocal(t *testing.T) {
	w := newWorld("user-1")
	older := time.Now().UTC().Add(-time.Hour)

	local := trip.Trip{
		ID: "t1", UserID: "user-1", Name: "stale name",
		StartDate: older, EndDate: older, CreatedAt: older, UpdatedAt: older,
	}
	local.RemoteID = "rtrip-9"
	w.trips.put(local)

	newer := time.Now().UTC()
	w.remote.trips["rtrip-9"] = remotestore.TripRecord{
		ID: "rtrip-9", UserID: "user-1", Name: "fresh name",
		StartDate: older, EndDate: older, CreatedAt: older, UpdatedAt: newer,
	}
	w.remote.tripOrder = append(w.remote.tripOrder, "rtrip-9")

	res := w.syncer.Sync(context.Background(), "user-1")
	if res.State != StateCompleted || res.DownloadedTrips != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := w.trips.get("t1"); got.Name != "fresh name" || !got.UpdatedAt.Equal(newer) {
		t.Fatalf("remote not applied: %+v", got)
	}
}

func TestSyncPhotoFailureKeepsCheckpointDirtyAndRetries(t *testing.T) {
	w := newWorld("user-1")
	now := time.Now().UTC()

	cp := checkpoint.Checkpoint{
		ID: "c1", UserID: "user-1", Latitude: 1, Longitude: 2,
		Timestamp: now, Type: checkpoint.TypePhoto, PhotoAssetID: "asset-1", UpdatedAt: now,
	}
	cp.NeedsSync = true
	w.checkpoints.put(cp)

	// asset missing: photo fails, metadata still syncs
	res := w.syncer.Sync(context.Background(), "user-1")
	if res.State != StateCompleted || res.PhotoFailures != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	after := w.checkpoints.get("c1")
	if after.RemoteID == "" {
		t.Fatalf("metadata should have synced: %+v", after)
	}
	if !after.NeedsSync {
		t.Fatalf("photo failure must keep the checkpoint dirty: %+v", after)
	}
	if after.PhotoURL != "" {
		t.Fatalf("no photo url expected yet")
	}

	// asset appears: next cycle retries the upload and settles
	w.assets.add("asset-1")
	res = w.syncer.Sync(context.Background(), "user-1")
	if res.State != StateCompleted || res.PhotoFailures != 0 {
		t.Fatalf("retry cycle: %+v", res)
	}

	final := w.checkpoints.get("c1")
	if final.NeedsSync || final.PhotoURL == "" || final.PhotoThumbnailURL == "" {
		t.Fatalf("retry did not settle: %+v", final)
	}
	if w.remote.createCheckpointCalls != 1 {
		t.Fatalf("retry must update, not re-create, the remote document")
	}
}

func TestSyncPremiumUploadsOriginalTier(t *testing.T) {
	w := newWorld("user-1")
	w.remote.profile = remotestore.ProfileRecord{UserID: "user-1", IsPremium: true}
	w.remote.hasProfile = true
	w.assets.add("asset-1")

	now := time.Now().UTC()
	cp := checkpoint.Checkpoint{
		ID: "c1", UserID: "user-1", Timestamp: now,
		Type: checkpoint.TypePhoto, PhotoAssetID: "asset-1", UpdatedAt: now,
	}
	cp.NeedsSync = true
	w.checkpoints.put(cp)

	if res := w.syncer.Sync(context.Background(), "user-1"); res.State != StateCompleted {
		t.Fatalf("sync failed: %+v", res)
	}
	if w.blobs.lastTier != blobstore.TierOriginal {
		t.Fatalf("premium must upload original quality, got %s", w.blobs.lastTier)
	}
}

func TestSyncSingleFlight(t *testing.T) {
	w := newWorld("user-1")
	w.remote.blockUserTrips = make(chan struct{})

	started := make(chan struct{})
	done := make(chan Result, 1)
	go func() {
		close(started)
		done <- w.syncer.Sync(context.Background(), "user-1")
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	if res := w.syncer.Sync(context.Background(), "user-1"); res.State != StateAlreadyRunning {
		t.Fatalf("expected already_running, got %s", res.State)
	}

	close(w.remote.blockUserTrips)
	if res := <-done; res.State != StateCompleted {
		t.Fatalf("blocked sync should complete: %+v", res)
	}

	// guard released: a fresh cycle runs again
	w.remote.blockUserTrips = nil
	if res := w.syncer.Sync(context.Background(), "user-1"); res.State != StateCompleted {
		t.Fatalf("expected completed after release: %+v", res)
	}
}

func TestSyncFailureIsRecordedAndPublished(t *testing.T) {
	w := newWorld("user-1")
	w.remote.failUserTrips = errors.New("remote unavailable")

	res := w.syncer.Sync(context.Background(), "user-1")
	if res.State != StateFailed || res.Err == "" {
		t.Fatalf("expected failed result, got %+v", res)
	}

	last := w.syncer.LastResult()
	if last == nil || last.State != StateFailed {
		t.Fatalf("failure not recorded: %+v", last)
	}

	types := w.events.types()
	if len(types) != 2 || types[1] != stream.EventSyncFailed {
		t.Fatalf("unexpected events: %v", types)
	}

	// partial progress is retained; a retry after recovery completes
	w.remote.mu.Lock()
	w.remote.failUserTrips = nil
	w.remote.mu.Unlock()
	if res := w.syncer.Sync(context.Background(), "user-1"); res.State != StateCompleted {
		t.Fatalf("retry should complete: %+v", res)
	}
}

func TestLastResultBeforeAnySync(t *testing.T) {
	w := newWorld("user-1")
	if w.syncer.LastResult() != nil {
		t.Fatalf("expected nil before first cycle")
	}
}

func TestApplyRemoteRule(t *testing.T) {
	base := time.Now()
	newer := base.Add(time.Minute)

	if !ApplyRemote(base, false, newer) {
		t.Fatalf("newer remote against clean local must apply")
	}
	if ApplyRemote(base, true, newer) {
		t.Fatalf("dirty local must never be overwritten")
	}
	if ApplyRemote(base, false, base) {
		t.Fatalf("equal timestamps must keep local")
	}
	if ApplyRemote(newer, false, base) {
		t.Fatalf("older remote must not apply")
	}
}
