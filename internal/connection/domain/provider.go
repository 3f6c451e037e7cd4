package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is invoked when the oauth2 transport refreshed the access
// token mid-call, so the new token can be re-encrypted and persisted.
type TokenUpdateFunc = func(token *oauth2.Token) error

// RemoteItem is a provider-neutral view of one candidate item returned by a
// listing call.
type RemoteItem struct {
	ID         string
	Name       string
	MimeType   string
	Size       int64
	ModifiedAt time.Time
}

// RemotePage is one page of a listing; the caller loops until NextPageToken
// is empty.
type RemotePage struct {
	Items          []RemoteItem
	NextPageToken  string
	EstimatedTotal int
}

// ListScope describes what subset of the remote account a connection syncs.
type ListScope struct {
	FolderID  string
	Recursive bool
	Query     string
}

// RemoteLister enumerates candidate items from the vendor API.
type RemoteLister interface {
	List(ctx context.Context, accessToken, refreshToken string, scope ListScope, pageToken string, onTokenRefresh TokenUpdateFunc) (*RemotePage, error)
}

// Ingestor turns a raw remote item into a local artifact and returns the
// artifact id. Implemented by the document module.
type Ingestor interface {
	Ingest(ctx context.Context, conn *Connection, item RemoteItem, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (artifactID string, err error)
}
