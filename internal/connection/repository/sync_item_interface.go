package repository

import (
	conndomain "lexhub-backend/internal/connection/domain"
)

// SyncItemRepository is the durable store of per-item sync state. It is the
// source of truth for what has already been processed for a connection.
type SyncItemRepository interface {
	Get(connectionID, remoteID string) (*conndomain.SyncItem, error)
	GetByID(connectionID, id string) (*conndomain.SyncItem, error)
	// Upsert is last-write-wins keyed by (connectionID, remoteID); concurrent
	// upserts for the same key are serialized on the unique index.
	Upsert(item *conndomain.SyncItem) error
	Update(item *conndomain.SyncItem) error
	ListByStatus(connectionID string, status conndomain.SyncItemStatus) ([]*conndomain.SyncItem, error)
	CountByStatus(connectionID string) (map[conndomain.SyncItemStatus]int, error)
	// RecentErrors returns the most recently failed items, newest first.
	RecentErrors(connectionID string, limit int) ([]*conndomain.SyncItem, error)
}
