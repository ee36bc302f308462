package sync

import "time"

// State is the terminal disposition of one Sync call.
type State string

const (
	StateCompleted       State = "completed"
	StateAlreadyRunning  State = "already_running"
	StateUnauthenticated State = "unauthenticated"
	StateFailed          State = "failed"
)

// Result describes one sync cycle. Counters only cover records the cycle
// actually wrote, not records it examined and left alone.
type Result struct {
	State                 State     `json:"state"`
	UserID                string    `json:"user_id,omitempty"`
	StartedAt             time.Time `json:"started_at,omitempty"`
	FinishedAt            time.Time `json:"finished_at,omitempty"`
	UploadedTrips         int       `json:"uploaded_trips"`
	UploadedCheckpoints   int       `json:"uploaded_checkpoints"`
	DownloadedTrips       int       `json:"downloaded_trips"`
	DownloadedCheckpoints int       `json:"downloaded_checkpoints"`
	PhotoFailures         int       `json:"photo_failures"`
	Err                   string    `json:"error,omitempty"`
}
