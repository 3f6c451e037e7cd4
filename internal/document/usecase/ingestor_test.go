package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	docdomain "lexhub-backend/internal/document/domain"
	"lexhub-backend/pkg/ai"
)

type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[string]*docdomain.Document
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[string]*docdomain.Document)}
}

func (r *fakeDocRepo) Upsert(doc *docdomain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := doc.ConnectionID + "/" + doc.RemoteID
	if existing, ok := r.docs[key]; ok {
		doc.ID = existing.ID
	} else {
		doc.ID = "doc-" + doc.RemoteID
	}
	cp := *doc
	r.docs[key] = &cp
	return nil
}

func (r *fakeDocRepo) FindByUserAndID(userID, id string) (*docdomain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.UserID == userID && doc.ID == id {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) ListByUser(userID string, limit, offset int) ([]*docdomain.Document, error) {
	return nil, nil
}

func (r *fakeDocRepo) FindByIDs(userID string, ids []string) ([]*docdomain.Document, error) {
	var out []*docdomain.Document
	for _, id := range ids {
		if doc, err := r.FindByUserAndID(userID, id); err == nil && doc != nil {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeDocRepo) DeleteByConnection(connectionID string) error { return nil }

type fakeEmailRepo struct {
	mu     sync.Mutex
	emails map[string]*docdomain.ProcessedEmail
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{emails: make(map[string]*docdomain.ProcessedEmail)}
}

func (r *fakeEmailRepo) Upsert(email *docdomain.ProcessedEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := email.ConnectionID + "/" + email.MessageID
	if existing, ok := r.emails[key]; ok {
		email.ID = existing.ID
	} else {
		email.ID = "email-" + email.MessageID
	}
	cp := *email
	r.emails[key] = &cp
	return nil
}

func (r *fakeEmailRepo) FindByUserAndID(userID, id string) (*docdomain.ProcessedEmail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, email := range r.emails {
		if email.UserID == userID && email.ID == id {
			cp := *email
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeEmailRepo) ListByUser(userID string, limit, offset int) ([]*docdomain.ProcessedEmail, error) {
	return nil, nil
}

func (r *fakeEmailRepo) DeleteByConnection(connectionID string) error { return nil }

type fakeDownloader struct {
	data []byte
	err  error
}

func (d *fakeDownloader) Download(ctx context.Context, accessToken, refreshToken, fileID, mimeType string, onTokenRefresh conndomain.TokenUpdateFunc) ([]byte, error) {
	return d.data, d.err
}

type fakeRawFetcher struct {
	raw []byte
	err error
}

func (f *fakeRawFetcher) FetchRaw(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh conndomain.TokenUpdateFunc) ([]byte, error) {
	return f.raw, f.err
}

type fakeExtractor struct {
	extraction *ai.TermExtraction
	err        error
	calls      int
}

func (e *fakeExtractor) ExtractTerms(ctx context.Context, documentText string) (*ai.TermExtraction, error) {
	e.calls++
	return e.extraction, e.err
}

type fakeIndexer struct {
	indexed   map[string]string // id -> title
	searchIDs []string
	distances []float64
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: make(map[string]string)}
}

func (i *fakeIndexer) UpsertDocument(ctx context.Context, documentID, userID, title, text string) error {
	i.indexed[documentID] = title
	return nil
}

func (i *fakeIndexer) SemanticSearch(ctx context.Context, userID, query string, limit int) ([]string, []float64, error) {
	return i.searchIDs, i.distances, nil
}

func driveConn() *conndomain.Connection {
	return &conndomain.Connection{
		ID:       "conn-1",
		UserID:   "user-1",
		Provider: conndomain.ProviderGoogleDrive,
	}
}

func gmailConn() *conndomain.Connection {
	return &conndomain.Connection{
		ID:       "conn-2",
		UserID:   "user-1",
		Provider: conndomain.ProviderGmail,
	}
}

const rawTestEmail = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Contract renewal notice\r\n" +
	"Date: Mon, 02 Feb 2026 10:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please renew the service agreement before March 1.\r\n"

func TestIngestDriveFile(t *testing.T) {
	docRepo := newFakeDocRepo()
	extractor := &fakeExtractor{extraction: &ai.TermExtraction{Summary: "A service agreement."}}
	indexer := newFakeIndexer()
	ingestor := NewIngestor(docRepo, newFakeEmailRepo(), &fakeDownloader{data: []byte("full contract text")}, nil, extractor, indexer)

	item := conndomain.RemoteItem{
		ID:         "file-1",
		Name:       "contract.txt",
		MimeType:   "text/plain",
		Size:       18,
		ModifiedAt: time.Now(),
	}
	artifactID, err := ingestor.Ingest(context.Background(), driveConn(), item, "at", "rt", nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if artifactID != "doc-file-1" {
		t.Errorf("artifactID = %q", artifactID)
	}

	doc, _ := docRepo.FindByUserAndID("user-1", artifactID)
	if doc == nil {
		t.Fatal("document not persisted")
	}
	if doc.Text != "full contract text" {
		t.Errorf("text = %q", doc.Text)
	}
	if doc.Terms == nil || doc.Terms.Summary != "A service agreement." {
		t.Errorf("terms = %+v", doc.Terms)
	}
	if extractor.calls != 1 {
		t.Errorf("extractor called %d times", extractor.calls)
	}
	if indexer.indexed[artifactID] != "contract.txt" {
		t.Errorf("document not indexed: %v", indexer.indexed)
	}
}

func TestIngestDriveDownloadFailure(t *testing.T) {
	ingestor := NewIngestor(newFakeDocRepo(), newFakeEmailRepo(), &fakeDownloader{err: errors.New("drive said no")}, nil, nil, nil)

	_, err := ingestor.Ingest(context.Background(), driveConn(), conndomain.RemoteItem{ID: "file-1"}, "at", "rt", nil)
	if err == nil {
		t.Fatal("expected download error to fail the item")
	}
}

func TestIngestSurvivesExtractionFailure(t *testing.T) {
	docRepo := newFakeDocRepo()
	extractor := &fakeExtractor{err: errors.New("model unavailable")}
	ingestor := NewIngestor(docRepo, newFakeEmailRepo(), &fakeDownloader{data: []byte("text")}, nil, extractor, nil)

	artifactID, err := ingestor.Ingest(context.Background(), driveConn(), conndomain.RemoteItem{ID: "file-1", Name: "a.txt", MimeType: "text/plain"}, "at", "rt", nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	doc, _ := docRepo.FindByUserAndID("user-1", artifactID)
	if doc == nil {
		t.Fatal("document not persisted despite extraction failure")
	}
	if doc.Terms != nil {
		t.Errorf("terms = %+v, want nil on extraction failure", doc.Terms)
	}
}

func TestIngestEmail(t *testing.T) {
	emailRepo := newFakeEmailRepo()
	ingestor := NewIngestor(newFakeDocRepo(), emailRepo, nil, &fakeRawFetcher{raw: []byte(rawTestEmail)}, nil, nil)

	item := conndomain.RemoteItem{ID: "msg-1", ModifiedAt: time.Now()}
	artifactID, err := ingestor.Ingest(context.Background(), gmailConn(), item, "at", "rt", nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	email, _ := emailRepo.FindByUserAndID("user-1", artifactID)
	if email == nil {
		t.Fatal("email not persisted")
	}
	if email.Subject != "Contract renewal notice" {
		t.Errorf("subject = %q", email.Subject)
	}
	if email.From != "alice@example.com" {
		t.Errorf("from = %q", email.From)
	}
	if !strings.Contains(email.Body, "renew the service agreement") {
		t.Errorf("body = %q", email.Body)
	}
	if email.SentAt.IsZero() {
		t.Error("sent date not parsed")
	}
}

func TestTextFromFile(t *testing.T) {
	data := []byte("hello")
	cases := map[string]string{
		"text/plain":                           "hello",
		"application/vnd.google-apps.document": "hello",
		"application/pdf":                      "",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "",
	}
	for mime, want := range cases {
		if got := textFromFile(mime, data); got != want {
			t.Errorf("textFromFile(%q) = %q, want %q", mime, got, want)
		}
	}
}
