package domain

import "time"

// Obligation is one contractual duty with an optional deadline.
type Obligation struct {
	Description string     `json:"description"`
	Party       string     `json:"party,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Amount is a monetary value referenced in a document.
type Amount struct {
	Description string  `json:"description,omitempty"`
	Value       float64 `json:"value"`
	Currency    string  `json:"currency"`
}

// ExtractedTerms is the structured summary of a legal document, produced by
// the AI extraction step and stored as JSON alongside the document row.
type ExtractedTerms struct {
	Parties           []string     `json:"parties,omitempty"`
	EffectiveDate     *time.Time   `json:"effective_date,omitempty"`
	ExpirationDate    *time.Time   `json:"expiration_date,omitempty"`
	RenewalNoticeDays int          `json:"renewal_notice_days,omitempty"`
	Obligations       []Obligation `json:"obligations,omitempty"`
	Amounts           []Amount     `json:"amounts,omitempty"`
	GoverningLaw      string       `json:"governing_law,omitempty"`
	Summary           string       `json:"summary,omitempty"`
}
