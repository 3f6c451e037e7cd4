package usecase

import (
	"context"
	"fmt"

	docdomain "lexhub-backend/internal/document/domain"
	docdto "lexhub-backend/internal/document/dto"
	"lexhub-backend/internal/document/repository"
)

// documentUsecase implements DocumentUsecase
type documentUsecase struct {
	docRepo   repository.DocumentRepository
	emailRepo repository.EmailRepository
	indexer   Indexer
}

// NewDocumentUsecase creates a new instance of documentUsecase
func NewDocumentUsecase(docRepo repository.DocumentRepository, emailRepo repository.EmailRepository, indexer Indexer) DocumentUsecase {
	return &documentUsecase{
		docRepo:   docRepo,
		emailRepo: emailRepo,
		indexer:   indexer,
	}
}

func (u *documentUsecase) ListDocuments(userID string, limit, offset int) ([]*docdomain.Document, error) {
	return u.docRepo.ListByUser(userID, limit, offset)
}

func (u *documentUsecase) GetDocument(userID, id string) (*docdomain.Document, error) {
	doc, err := u.docRepo.FindByUserAndID(userID, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, docdomain.ErrNotFound
	}
	return doc, nil
}

func (u *documentUsecase) ListEmails(userID string, limit, offset int) ([]*docdomain.ProcessedEmail, error) {
	return u.emailRepo.ListByUser(userID, limit, offset)
}

func (u *documentUsecase) GetEmail(userID, id string) (*docdomain.ProcessedEmail, error) {
	email, err := u.emailRepo.FindByUserAndID(userID, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, docdomain.ErrNotFound
	}
	return email, nil
}

// Search queries the vector store, then hydrates the hits from Postgres in
// the order the index returned them.
func (u *documentUsecase) Search(ctx context.Context, userID, query string, limit int) ([]*docdto.SearchResult, error) {
	if u.indexer == nil {
		return nil, fmt.Errorf("semantic search is not configured")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	ids, distances, err := u.indexer.SemanticSearch(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*docdto.SearchResult{}, nil
	}

	docs, err := u.docRepo.FindByIDs(userID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*docdomain.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	results := make([]*docdto.SearchResult, 0, len(ids))
	for idx, id := range ids {
		doc, ok := byID[id]
		if !ok {
			// Index entry without a row, e.g. deleted after indexing
			continue
		}
		result := &docdto.SearchResult{Document: doc}
		if idx < len(distances) {
			result.Distance = distances[idx]
		}
		results = append(results, result)
	}
	return results, nil
}
