package repository

import (
	docdomain "lexhub-backend/internal/document/domain"
)

// DocumentRepository persists synced Drive documents.
type DocumentRepository interface {
	// Upsert writes the document keyed by (connection_id, remote_id); after
	// it returns, doc.ID holds the row's id whether it was inserted or
	// updated.
	Upsert(doc *docdomain.Document) error
	FindByUserAndID(userID, id string) (*docdomain.Document, error)
	ListByUser(userID string, limit, offset int) ([]*docdomain.Document, error)
	FindByIDs(userID string, ids []string) ([]*docdomain.Document, error)
	DeleteByConnection(connectionID string) error
}

// EmailRepository persists processed Gmail messages.
type EmailRepository interface {
	Upsert(email *docdomain.ProcessedEmail) error
	FindByUserAndID(userID, id string) (*docdomain.ProcessedEmail, error)
	ListByUser(userID string, limit, offset int) ([]*docdomain.ProcessedEmail, error)
	DeleteByConnection(connectionID string) error
}
