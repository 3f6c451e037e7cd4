package domain

import "time"

// Provider identifies the external service a connection is linked to.
type Provider string

const (
	ProviderGoogleDrive Provider = "google-drive"
	ProviderGmail       Provider = "gmail"
)

// ConnectionStatus represents the aggregate state of a connection.
type ConnectionStatus string

const (
	ConnectionPendingSetup ConnectionStatus = "pending_setup"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionSyncing      ConnectionStatus = "syncing"
	ConnectionError        ConnectionStatus = "error"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// SyncFrequency controls how often a connection is reconciled.
type SyncFrequency string

const (
	FrequencyRealtime SyncFrequency = "realtime"
	FrequencyHourly   SyncFrequency = "hourly"
	FrequencyDaily    SyncFrequency = "daily"
	FrequencyManual   SyncFrequency = "manual"
)

// Connection is one user's authorized link to an external account.
// Access and refresh tokens are stored encrypted; they never hit the
// database in plaintext.
type Connection struct {
	ID           string   `json:"id" gorm:"primaryKey"`
	UserID       string   `json:"user_id" gorm:"index;not null;uniqueIndex:idx_user_provider_account"`
	Provider     Provider `json:"provider" gorm:"not null;uniqueIndex:idx_user_provider_account"`
	AccountEmail string   `json:"account_email" gorm:"not null;uniqueIndex:idx_user_provider_account"`

	AccessToken  string    `json:"-" gorm:"not null"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`

	Status ConnectionStatus `json:"status" gorm:"default:pending_setup"`

	// Sync scope: Drive connections watch a folder, Gmail connections a query.
	FolderID   string `json:"folder_id,omitempty"`
	FolderPath string `json:"folder_path,omitempty"`
	Recursive  bool   `json:"recursive"`
	Query      string `json:"query,omitempty"`

	Frequency SyncFrequency `json:"frequency" gorm:"default:manual"`

	TotalItems  int `json:"total_items" gorm:"default:0"`
	SyncedItems int `json:"synced_items" gorm:"default:0"`
	FailedItems int `json:"failed_items" gorm:"default:0"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	NextSyncAt *time.Time `json:"next_sync_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SyncItems []SyncItem `json:"-" gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE"`
}
