package usecase

import (
	"context"

	docdomain "lexhub-backend/internal/document/domain"
	docdto "lexhub-backend/internal/document/dto"
)

// DocumentUsecase exposes read access to synced documents and emails.
type DocumentUsecase interface {
	ListDocuments(userID string, limit, offset int) ([]*docdomain.Document, error)
	GetDocument(userID, id string) (*docdomain.Document, error)
	ListEmails(userID string, limit, offset int) ([]*docdomain.ProcessedEmail, error)
	GetEmail(userID, id string) (*docdomain.ProcessedEmail, error)
	Search(ctx context.Context, userID, query string, limit int) ([]*docdto.SearchResult, error)
}

// Indexer pushes document text into the vector store. Satisfied by
// chroma.Client; nil when semantic search is not configured.
type Indexer interface {
	UpsertDocument(ctx context.Context, documentID, userID, title, text string) error
	SemanticSearch(ctx context.Context, userID, query string, limit int) ([]string, []float64, error)
}
