package usecase

import (
	"context"

	conndomain "lexhub-backend/internal/connection/domain"
	conndto "lexhub-backend/internal/connection/dto"
)

// ConnectionUsecase owns the connection lifecycle: OAuth connect flow,
// scope finalization, status aggregation and disconnect. Every operation
// that takes a userID enforces ownership; a foreign connection id behaves
// exactly like a missing one.
type ConnectionUsecase interface {
	Connect(userID string, provider conndomain.Provider) (authURL string, err error)
	HandleCallback(ctx context.Context, state, code string) (*conndomain.Connection, error)
	FinalizeScope(userID, connectionID string, req *conndto.ScopeRequest) (*conndomain.Connection, error)
	List(userID string) ([]*conndomain.Connection, error)
	Status(userID, connectionID string) (*conndto.StatusResponse, error)
	TriggerSync(userID, connectionID string) error
	RetryItem(userID, connectionID, itemID string) error
	Disconnect(ctx context.Context, userID, connectionID string) error
}
