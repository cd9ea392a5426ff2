package model

// SnapshotRecord is a snapshot tagged with the deployment it belongs to, as
// written to storage.
type SnapshotRecord struct {
	Deployment string `json:"deployment"`
	PoolSnapshot
}
