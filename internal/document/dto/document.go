package dto

import (
	docdomain "lexhub-backend/internal/document/domain"
)

// SearchResult is one semantic search hit; lower distance means closer.
type SearchResult struct {
	Document *docdomain.Document `json:"document"`
	Distance float64             `json:"distance"`
}

type DocumentsResponse struct {
	Documents []*docdomain.Document `json:"documents"`
}

type EmailsResponse struct {
	Emails []*docdomain.ProcessedEmail `json:"emails"`
}

type SearchResponse struct {
	Results []*SearchResult `json:"results"`
}
