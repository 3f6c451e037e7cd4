package googleauth

import (
	"context"
	"log"
	"net/http"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"

	"golang.org/x/oauth2"
)

// notifyTokenSource wraps an oauth2.TokenSource and reports refreshed
// tokens through a callback so the vault can re-encrypt and persist them.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback conndomain.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[OAuth] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// Client builds an authenticated HTTP client for Google API calls. When a
// refresh token is present the token is marked expired so the first call
// refreshes it; the refreshed token is then reused for the rest of the run
// and persisted via onTokenRefresh.
func (s *Service) Client(ctx context.Context, provider conndomain.Provider, accessToken, refreshToken string, onTokenRefresh conndomain.TokenUpdateFunc) *http.Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	src := s.oauthConfig(provider).TokenSource(ctx, token)
	wrapped := &notifyTokenSource{
		src:      src,
		current:  token,
		callback: onTokenRefresh,
	}
	return oauth2.NewClient(ctx, wrapped)
}
