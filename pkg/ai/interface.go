package ai

import (
	"context"
	"time"
)

// ObligationExtraction is one contractual obligation found in a document.
type ObligationExtraction struct {
	Description string     `json:"description"`
	Party       string     `json:"party,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// AmountExtraction is a monetary amount found in a document.
type AmountExtraction struct {
	Description string  `json:"description,omitempty"`
	Value       float64 `json:"value"`
	Currency    string  `json:"currency"`
}

// TermExtraction is the structured result of analyzing a legal document or
// email: the fields the product tracks for deadlines and reminders.
type TermExtraction struct {
	Parties           []string               `json:"parties,omitempty"`
	EffectiveDate     *time.Time             `json:"effective_date,omitempty"`
	ExpirationDate    *time.Time             `json:"expiration_date,omitempty"`
	RenewalNoticeDays int                    `json:"renewal_notice_days,omitempty"`
	Obligations       []ObligationExtraction `json:"obligations,omitempty"`
	Amounts           []AmountExtraction     `json:"amounts,omitempty"`
	GoverningLaw      string                 `json:"governing_law,omitempty"`
	Summary           string                 `json:"summary,omitempty"`
}

// TermExtractor is the interface for LLM-backed term extraction.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type TermExtractor interface {
	ExtractTerms(ctx context.Context, documentText string) (*TermExtraction, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
