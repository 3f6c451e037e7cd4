package domain

import "time"

// SyncItemStatus tracks one remote item through the reconciliation state
// machine. Transitions are pending -> syncing -> {completed, failed};
// failed items may be reset to pending on manual retry.
type SyncItemStatus string

const (
	SyncItemPending   SyncItemStatus = "pending"
	SyncItemSyncing   SyncItemStatus = "syncing"
	SyncItemCompleted SyncItemStatus = "completed"
	SyncItemFailed    SyncItemStatus = "failed"
)

// SyncItem is the durable record of one remote object's processing state
// within a connection. RemoteID is unique per connection.
type SyncItem struct {
	ID           string `json:"id" gorm:"primaryKey"`
	ConnectionID string `json:"connection_id" gorm:"not null;index;uniqueIndex:idx_conn_remote"`
	RemoteID     string `json:"remote_id" gorm:"not null;uniqueIndex:idx_conn_remote"`

	// Remote metadata snapshot
	Name             string    `json:"name"`
	MimeType         string    `json:"mime_type,omitempty"`
	Size             int64     `json:"size,omitempty"`
	RemoteModifiedAt time.Time `json:"remote_modified_at"`

	Status    SyncItemStatus `json:"status" gorm:"default:pending;index"`
	Attempts  int            `json:"attempts" gorm:"default:0"`
	LastError string         `json:"last_error,omitempty"`

	// Local artifact created by ingestion (document or processed email)
	ArtifactID string `json:"artifact_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
