package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	"lexhub-backend/pkg/googleauth"
	"lexhub-backend/pkg/retry"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Service lists and fetches Gmail messages for a connection.
type Service struct {
	auth        *googleauth.Service
	retryPolicy retry.Policy
}

// NewService creates a new Gmail service.
func NewService(auth *googleauth.Service, retryPolicy retry.Policy) *Service {
	return &Service{
		auth:        auth,
		retryPolicy: retryPolicy,
	}
}

func (s *Service) getGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh conndomain.TokenUpdateFunc) (*gmail.Service, error) {
	client := s.auth.Client(ctx, conndomain.ProviderGmail, accessToken, refreshToken, onTokenRefresh)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}
	return srv, nil
}

// List runs the connection's provider query and returns message metadata.
// Gmail's list endpoint only returns id/threadId stubs, so each stub is
// resolved with a metadata fetch before it is handed to the reconciler;
// the full body is fetched later during ingestion.
func (s *Service) List(ctx context.Context, accessToken, refreshToken string, scope conndomain.ListScope, pageToken string, onTokenRefresh conndomain.TokenUpdateFunc) (*conndomain.RemotePage, error) {
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	user := "me"

	var resp *gmail.ListMessagesResponse
	err = s.retryPolicy.Do(ctx, func() error {
		call := srv.Users.Messages.List(user).MaxResults(100).Context(ctx)
		if scope.Query != "" {
			call = call.Q(scope.Query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
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

	// Resolve stubs in parallel with a bounded number of in-flight fetches
	type stubResult struct {
		item conndomain.RemoteItem
		err  error
	}
	results := make(chan stubResult, len(resp.Messages))
	semaphore := make(chan struct{}, 10)

	for _, msg := range resp.Messages {
		go func(msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			full, getErr := srv.Users.Messages.Get(user, msgID).
				Format("metadata").
				MetadataHeaders("Subject", "From").
				Context(ctx).
				Do()
			if getErr != nil {
				results <- stubResult{err: asRemoteError(getErr)}
				return
			}
			results <- stubResult{item: conndomain.RemoteItem{
				ID:         full.Id,
				Name:       getHeader(full.Payload, "Subject"),
				MimeType:   "message/rfc822",
				Size:       full.SizeEstimate,
				ModifiedAt: time.Unix(full.InternalDate/1000, 0),
			}}
		}(msg.Id)
	}

	page := &conndomain.RemotePage{
		NextPageToken:  resp.NextPageToken,
		EstimatedTotal: int(resp.ResultSizeEstimate),
	}
	var firstErr error
	for range resp.Messages {
		result := <-results
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		page.Items = append(page.Items, result.item)
	}
	if firstErr != nil && len(page.Items) == 0 {
		return nil, firstErr
	}

	// Parallel fetching scrambles order; newest first
	sort.Slice(page.Items, func(i, j int) bool {
		return page.Items[i].ModifiedAt.After(page.Items[j].ModifiedAt)
	})

	return page, nil
}

// FetchRaw downloads one message in RFC 822 form for ingestion.
func (s *Service) FetchRaw(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh conndomain.TokenUpdateFunc) ([]byte, error) {
	srv, err := s.getGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = s.retryPolicy.Do(ctx, func() error {
		m, callErr := srv.Users.Messages.Get("me", messageID).Format("raw").Context(ctx).Do()
		if callErr != nil {
			return asRemoteError(callErr)
		}
		msg = m
		return nil
	}, conndomain.IsRetryableRemoteError)
	if err != nil {
		return nil, err
	}

	data, err := base64.URLEncoding.DecodeString(msg.Raw)
	if err != nil {
		return nil, fmt.Errorf("unable to decode raw message: %v", err)
	}
	return data, nil
}

// BuildQuery assembles a Gmail search query from keywords and a start date,
// e.g. (invoice OR contract) after:2024/01/01.
func BuildQuery(keywords []string, after time.Time) string {
	q := ""
	if len(keywords) == 1 {
		q = keywords[0]
	} else if len(keywords) > 1 {
		q = "("
		for i, kw := range keywords {
			if i > 0 {
				q += " OR "
			}
			q += kw
		}
		q += ")"
	}
	if !after.IsZero() {
		if q != "" {
			q += " "
		}
		q += "after:" + after.Format("2006/01/02")
	}
	return q
}

func getHeader(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, header := range payload.Headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

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
