package sync

import "time"

// ApplyRemote reports whether a remote revision should overwrite the local
// one. A local edit that has not been uploaded yet always wins, even against
// a newer remote timestamp; otherwise the strictly newer revision wins and a
// tie keeps local.
func ApplyRemote(localUpdatedAt time.Time, localDirty bool, remoteUpdatedAt time.Time) bool {
	return remoteUpdatedAt.After(localUpdatedAt) && !localDirty
}
