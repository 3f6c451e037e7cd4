package domain

import "time"

// Document is a file pulled from a connected Drive folder, with the text and
// extracted terms the rest of the product works on.
type Document struct {
	ID           string `json:"id" gorm:"primaryKey"`
	UserID       string `json:"user_id" gorm:"index;not null"`
	ConnectionID string `json:"connection_id" gorm:"not null;uniqueIndex:idx_doc_conn_remote"`
	RemoteID     string `json:"remote_id" gorm:"not null;uniqueIndex:idx_doc_conn_remote"`

	Title     string `json:"title"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`

	Text  string          `json:"-" gorm:"type:text"`
	Terms *ExtractedTerms `json:"terms,omitempty" gorm:"serializer:json"`

	RemoteModifiedAt time.Time `json:"remote_modified_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProcessedEmail is a Gmail message matched by a connection's query, reduced
// to the fields worth keeping.
type ProcessedEmail struct {
	ID           string `json:"id" gorm:"primaryKey"`
	UserID       string `json:"user_id" gorm:"index;not null"`
	ConnectionID string `json:"connection_id" gorm:"not null;uniqueIndex:idx_email_conn_remote"`
	MessageID    string `json:"message_id" gorm:"not null;uniqueIndex:idx_email_conn_remote"`

	Subject string    `json:"subject"`
	From    string    `json:"from"`
	SentAt  time.Time `json:"sent_at"`

	Body  string          `json:"-" gorm:"type:text"`
	Terms *ExtractedTerms `json:"terms,omitempty" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
