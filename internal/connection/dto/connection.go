package dto

import (
	conndomain "lexhub-backend/internal/connection/domain"
)

type ConnectRequest struct {
	Provider string `json:"provider" binding:"required,oneof=google-drive gmail"`
}

type ConnectResponse struct {
	AuthURL string `json:"auth_url"`
}

type ScopeRequest struct {
	// Drive scope
	FolderID   string `json:"folder_id,omitempty"`
	FolderPath string `json:"folder_path,omitempty"`
	Recursive  bool   `json:"recursive,omitempty"`
	// Gmail scope
	Keywords  []string `json:"keywords,omitempty"`
	AfterDate string   `json:"after_date,omitempty"` // YYYY-MM-DD

	Frequency string `json:"frequency,omitempty" binding:"omitempty,oneof=realtime hourly daily manual"`
}

type ItemError struct {
	ItemID   string `json:"item_id"`
	RemoteID string `json:"remote_id"`
	Name     string `json:"name"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

type StatusResponse struct {
	Connection *conndomain.Connection `json:"connection"`
	Counters   map[string]int         `json:"counters"`
	// Bounded list of the most recent per-item failures so the UI can show
	// a diagnosable state even after an error run.
	RecentErrors []ItemError `json:"recent_errors"`
}

type ConnectionsResponse struct {
	Connections []*conndomain.Connection `json:"connections"`
}
