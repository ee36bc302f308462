package syncmeta

import "time"

// Status tracks where an entity sits relative to the remote store.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// Meta carries the per-entity sync bookkeeping shared by trips and checkpoints.
// RemoteID is assigned exactly once, on the first successful remote create.
type Meta struct {
	RemoteID     string    `json:"remote_id,omitempty"`
	NeedsSync    bool      `json:"needs_sync"`
	SyncStatus   Status    `json:"sync_status"`
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`
}

// IsSynced reports whether the entity has no unacknowledged local changes.
func (m Meta) IsSynced() bool {
	return m.SyncStatus == StatusSynced && !m.NeedsSync
}
