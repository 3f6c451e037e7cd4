package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	"lexhub-backend/pkg/googleauth"
	"lexhub-backend/pkg/retry"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// ingestableMimeType reports whether a file is a document type worth
// ingesting. Everything else under the folder is ignored by the lister.
func ingestableMimeType(mimeType string) bool {
	switch mimeType {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.google-apps.document",
		"application/rtf",
		"text/plain":
		return true
	}
	return false
}

// Service lists and downloads files from Google Drive.
type Service struct {
	auth        *googleauth.Service
	retryPolicy retry.Policy
}

// NewService creates a new Drive service.
func NewService(auth *googleauth.Service, retryPolicy retry.Policy) *Service {
	return &Service{
		auth:        auth,
		retryPolicy: retryPolicy,
	}
}

func (s *Service) getDriveService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh conndomain.TokenUpdateFunc) (*drive.Service, error) {
	client := s.auth.Client(ctx, conndomain.ProviderGoogleDrive, accessToken, refreshToken, onTokenRefresh)
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}
	return srv, nil
}

// List enumerates files under the scope folder one page at a time. When the
// scope is recursive, subfolders discovered on a page are queued inside the
// cursor and visited after the current folder is exhausted, so the caller
// still sees a single flat pagination loop.
func (s *Service) List(ctx context.Context, accessToken, refreshToken string, scope conndomain.ListScope, pageToken string, onTokenRefresh conndomain.TokenUpdateFunc) (*conndomain.RemotePage, error) {
	srv, err := s.getDriveService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	cursor, err := decodeCursor(pageToken, scope.FolderID)
	if err != nil {
		return nil, err
	}

	var resp *drive.FileList
	err = s.retryPolicy.Do(ctx, func() error {
		call := srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", cursor.folder)).
			Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime)").
			PageSize(100).
			Context(ctx)
		if cursor.apiToken != "" {
			call = call.PageToken(cursor.apiToken)
		}
		r, callErr := call.Do()
		if callErr != nil {
			return asRemoteError(callErr)
		}
		resp = r
		return nil
	}, conndomain.IsRetryableRemoteError)
	if err != nil {
		return nil, err
	}

	page := &conndomain.RemotePage{}
	for _, f := range resp.Files {
		if f.MimeType == folderMimeType {
			if scope.Recursive {
				cursor.pending = append(cursor.pending, f.Id)
			}
			continue
		}
		if !ingestableMimeType(f.MimeType) {
			continue
		}
		modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
		page.Items = append(page.Items, conndomain.RemoteItem{
			ID:         f.Id,
			Name:       f.Name,
			MimeType:   f.MimeType,
			Size:       f.Size,
			ModifiedAt: modified,
		})
	}
	page.EstimatedTotal = len(page.Items)
	page.NextPageToken = cursor.next(resp.NextPageToken)
	return page, nil
}

// Download fetches a file's content. Google-native documents are exported
// as plain text; everything else is downloaded as stored.
func (s *Service) Download(ctx context.Context, accessToken, refreshToken, fileID, mimeType string, onTokenRefresh conndomain.TokenUpdateFunc) ([]byte, error) {
	srv, err := s.getDriveService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	err = s.retryPolicy.Do(ctx, func() error {
		if mimeType == "application/vnd.google-apps.document" {
			r, callErr := srv.Files.Export(fileID, "text/plain").Context(ctx).Download()
			if callErr != nil {
				return asRemoteError(callErr)
			}
			body = r.Body
			return nil
		}
		r, callErr := srv.Files.Get(fileID).Context(ctx).Download()
		if callErr != nil {
			return asRemoteError(callErr)
		}
		body = r.Body
		return nil
	}, conndomain.IsRetryableRemoteError)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("unable to read file content: %v", err)
	}
	return data, nil
}

// listCursor is the opaque page token handed back to callers. Layout:
// currentFolder|apiPageToken|pendingFolder1,pendingFolder2,...
type listCursor struct {
	folder   string
	apiToken string
	pending  []string
}

func decodeCursor(token, rootFolder string) (*listCursor, error) {
	if token == "" {
		return &listCursor{folder: rootFolder}, nil
	}
	parts := strings.SplitN(token, "|", 3)
	if len(parts) != 3 {
		return nil, errors.New("invalid drive page token")
	}
	c := &listCursor{folder: parts[0], apiToken: parts[1]}
	if parts[2] != "" {
		c.pending = strings.Split(parts[2], ",")
	}
	return c, nil
}

func (c *listCursor) next(apiNext string) string {
	if apiNext != "" {
		return c.folder + "|" + apiNext + "|" + strings.Join(c.pending, ",")
	}
	if len(c.pending) > 0 {
		return c.pending[0] + "||" + strings.Join(c.pending[1:], ",")
	}
	return ""
}

// asRemoteError maps googleapi failures onto the shared vendor error type.
func asRemoteError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &conndomain.RemoteAPIError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &conndomain.RemoteAPIError{StatusCode: 504, Message: "timeout"}
	}
	return err
}
