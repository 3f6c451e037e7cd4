package repository

import (
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
)

// ConnectionRepository defines persistence for connections.
type ConnectionRepository interface {
	Create(conn *conndomain.Connection) error
	FindByID(id string) (*conndomain.Connection, error)
	// FindByUserAndID returns nil when the connection does not exist OR is
	// owned by a different user, so callers cannot probe foreign ids.
	FindByUserAndID(userID, id string) (*conndomain.Connection, error)
	FindByUserProviderAccount(userID string, provider conndomain.Provider, accountEmail string) (*conndomain.Connection, error)
	FindByProviderAccount(provider conndomain.Provider, accountEmail string) (*conndomain.Connection, error)
	ListByUser(userID string) ([]*conndomain.Connection, error)
	Update(conn *conndomain.Connection) error
	UpdateTokens(id, accessToken, refreshToken string, expiry time.Time) error
	// TryBeginSync atomically flips the connection into syncing and reports
	// whether it won the race. The row is only updated when the current
	// status is not already syncing.
	TryBeginSync(id string) (bool, error)
	FinishSync(id string, status conndomain.ConnectionStatus, total, synced, failed int, lastSync time.Time) error
	Delete(id string) error
}
