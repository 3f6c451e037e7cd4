package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	conndomain "lexhub-backend/internal/connection/domain"
	docdomain "lexhub-backend/internal/document/domain"
	"lexhub-backend/internal/document/repository"
	"lexhub-backend/pkg/ai"

	"github.com/emersion/go-message/mail"
)

// Downloader fetches file content from Drive. Satisfied by drive.Service.
type Downloader interface {
	Download(ctx context.Context, accessToken, refreshToken, fileID, mimeType string, onTokenRefresh conndomain.TokenUpdateFunc) ([]byte, error)
}

// RawFetcher fetches a full RFC 5322 message from Gmail. Satisfied by
// gmail.Service.
type RawFetcher interface {
	FetchRaw(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh conndomain.TokenUpdateFunc) ([]byte, error)
}

// Ingestor downloads remote items, runs term extraction and persists the
// result. It implements the reconciler's per-item processing step.
type Ingestor struct {
	docRepo   repository.DocumentRepository
	emailRepo repository.EmailRepository
	drive     Downloader
	gmail     RawFetcher
	extractor ai.TermExtractor
	indexer   Indexer
}

func NewIngestor(
	docRepo repository.DocumentRepository,
	emailRepo repository.EmailRepository,
	driveSvc Downloader,
	gmailSvc RawFetcher,
	extractor ai.TermExtractor,
	indexer Indexer,
) *Ingestor {
	return &Ingestor{
		docRepo:   docRepo,
		emailRepo: emailRepo,
		drive:     driveSvc,
		gmail:     gmailSvc,
		extractor: extractor,
		indexer:   indexer,
	}
}

func (i *Ingestor) Ingest(ctx context.Context, conn *conndomain.Connection, item conndomain.RemoteItem, accessToken, refreshToken string, onTokenRefresh conndomain.TokenUpdateFunc) (string, error) {
	switch conn.Provider {
	case conndomain.ProviderGoogleDrive:
		return i.ingestFile(ctx, conn, item, accessToken, refreshToken, onTokenRefresh)
	case conndomain.ProviderGmail:
		return i.ingestEmail(ctx, conn, item, accessToken, refreshToken, onTokenRefresh)
	default:
		return "", fmt.Errorf("unsupported provider: %s", conn.Provider)
	}
}

func (i *Ingestor) ingestFile(ctx context.Context, conn *conndomain.Connection, item conndomain.RemoteItem, accessToken, refreshToken string, onTokenRefresh conndomain.TokenUpdateFunc) (string, error) {
	data, err := i.drive.Download(ctx, accessToken, refreshToken, item.ID, item.MimeType, onTokenRefresh)
	if err != nil {
		return "", err
	}

	text := textFromFile(item.MimeType, data)

	doc := &docdomain.Document{
		UserID:           conn.UserID,
		ConnectionID:     conn.ID,
		RemoteID:         item.ID,
		Title:            item.Name,
		MimeType:         item.MimeType,
		SizeBytes:        item.Size,
		Text:             text,
		Terms:            i.extractTerms(ctx, text),
		RemoteModifiedAt: item.ModifiedAt,
	}

	if err := i.docRepo.Upsert(doc); err != nil {
		return "", err
	}

	i.index(ctx, doc.ID, conn.UserID, doc.Title, text)

	return doc.ID, nil
}

func (i *Ingestor) ingestEmail(ctx context.Context, conn *conndomain.Connection, item conndomain.RemoteItem, accessToken, refreshToken string, onTokenRefresh conndomain.TokenUpdateFunc) (string, error) {
	raw, err := i.gmail.FetchRaw(ctx, accessToken, refreshToken, item.ID, onTokenRefresh)
	if err != nil {
		return "", err
	}

	email, err := parseEmail(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse message %s: %w", item.ID, err)
	}
	email.UserID = conn.UserID
	email.ConnectionID = conn.ID
	email.MessageID = item.ID
	if email.SentAt.IsZero() {
		email.SentAt = item.ModifiedAt
	}
	email.Terms = i.extractTerms(ctx, email.Subject+"\n\n"+email.Body)

	if err := i.emailRepo.Upsert(email); err != nil {
		return "", err
	}

	i.index(ctx, email.ID, conn.UserID, email.Subject, email.Body)

	return email.ID, nil
}

// extractTerms is best-effort: a flaky LLM must not fail the whole item, the
// document is still stored and searchable without terms.
func (i *Ingestor) extractTerms(ctx context.Context, text string) *docdomain.ExtractedTerms {
	if i.extractor == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	extraction, err := i.extractor.ExtractTerms(ctx, text)
	if err != nil {
		log.Printf("[Ingest] Term extraction failed: %v", err)
		return nil
	}

	terms := &docdomain.ExtractedTerms{
		Parties:           extraction.Parties,
		EffectiveDate:     extraction.EffectiveDate,
		ExpirationDate:    extraction.ExpirationDate,
		RenewalNoticeDays: extraction.RenewalNoticeDays,
		GoverningLaw:      extraction.GoverningLaw,
		Summary:           extraction.Summary,
	}
	for _, o := range extraction.Obligations {
		terms.Obligations = append(terms.Obligations, docdomain.Obligation{
			Description: o.Description,
			Party:       o.Party,
			DueDate:     o.DueDate,
		})
	}
	for _, a := range extraction.Amounts {
		terms.Amounts = append(terms.Amounts, docdomain.Amount{
			Description: a.Description,
			Value:       a.Value,
			Currency:    a.Currency,
		})
	}
	return terms
}

func (i *Ingestor) index(ctx context.Context, id, userID, title, text string) {
	if i.indexer == nil {
		return
	}
	if err := i.indexer.UpsertDocument(ctx, id, userID, title, text); err != nil {
		log.Printf("[Ingest] Failed to index %s: %v", id, err)
	}
}

// textFromFile returns the text to store for a downloaded file. Google Docs
// arrive already exported as text/plain; binary formats are kept out of the
// database.
func textFromFile(mimeType string, data []byte) string {
	switch mimeType {
	case "application/vnd.google-apps.document", "text/plain", "text/rtf", "application/rtf":
		return string(data)
	default:
		return ""
	}
}

// parseEmail pulls subject, sender, date and the first text/plain part out of
// a raw RFC 5322 message.
func parseEmail(raw []byte) (*docdomain.ProcessedEmail, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	email := &docdomain.ProcessedEmail{}
	if subject, err := mr.Header.Subject(); err == nil {
		email.Subject = subject
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	}
	if date, err := mr.Header.Date(); err == nil {
		email.SentAt = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if header, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := header.ContentType()
			if contentType == "text/plain" || (email.Body == "" && strings.HasPrefix(contentType, "text/")) {
				body, err := io.ReadAll(part.Body)
				if err == nil {
					email.Body = string(body)
				}
				if contentType == "text/plain" {
					break
				}
			}
		}
	}

	return email, nil
}
