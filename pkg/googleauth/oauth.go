package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	"lexhub-backend/pkg/retry"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultRevokeURL   = "https://oauth2.googleapis.com/revoke"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	// Conservative fixed timeout for every vendor call
	requestTimeout = 30 * time.Second
)

// Scopes requested per provider. Both include the email scope so the
// connection can be keyed by account email.
var providerScopes = map[conndomain.Provider][]string{
	conndomain.ProviderGoogleDrive: {
		"https://www.googleapis.com/auth/drive.readonly",
		"https://www.googleapis.com/auth/userinfo.email",
	},
	conndomain.ProviderGmail: {
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/userinfo.email",
	},
}

// Service wraps the Google OAuth2 endpoints used by the token vault:
// authorization-code exchange, refresh and best-effort revocation.
type Service struct {
	clientID     string
	clientSecret string
	redirectURI  string
	endpoint     oauth2.Endpoint
	revokeURL    string
	userInfoURL  string
	retryPolicy  retry.Policy
}

// Option overrides Service defaults, mainly for tests.
type Option func(*Service)

// WithEndpoint points the token endpoints at a different server.
func WithEndpoint(authURL, tokenURL string) Option {
	return func(s *Service) {
		s.endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	}
}

// WithRevokeURL points revocation at a different server.
func WithRevokeURL(u string) Option {
	return func(s *Service) { s.revokeURL = u }
}

// WithUserInfoURL points the userinfo lookup at a different server.
func WithUserInfoURL(u string) Option {
	return func(s *Service) { s.userInfoURL = u }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.retryPolicy = p }
}

// NewService creates a new Google OAuth service.
func NewService(clientID, clientSecret, redirectURI string, opts ...Option) *Service {
	s := &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		endpoint:     google.Endpoint,
		revokeURL:    defaultRevokeURL,
		userInfoURL:  defaultUserInfoURL,
		retryPolicy:  retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether client credentials are present.
func (s *Service) Configured() bool {
	return s.clientID != "" && s.clientSecret != ""
}

func (s *Service) oauthConfig(provider conndomain.Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		RedirectURL:  s.redirectURI,
		Endpoint:     s.endpoint,
		Scopes:       providerScopes[provider],
	}
}

// ConsentURL builds the Google consent page URL for the given provider.
// offline access + consent prompt so a refresh token is always issued.
func (s *Service) ConsentURL(provider conndomain.Provider, state string) (string, error) {
	if !s.Configured() {
		return "", conndomain.ErrProviderNotConfigured
	}
	cfg := s.oauthConfig(provider)
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// Exchange trades an authorization code for tokens.
func (s *Service) Exchange(ctx context.Context, provider conndomain.Provider, code string) (*oauth2.Token, error) {
	if !s.Configured() {
		return nil, conndomain.ErrProviderNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := s.oauthConfig(provider).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", conndomain.ErrAuthExchange, err)
	}
	return token, nil
}

// Refresh obtains a fresh access token from a refresh token.
func (s *Service) Refresh(ctx context.Context, provider conndomain.Provider, refreshToken string) (*oauth2.Token, error) {
	if !s.Configured() {
		return nil, conndomain.ErrProviderNotConfigured
	}

	var token *oauth2.Token
	err := s.retryPolicy.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		src := s.oauthConfig(provider).TokenSource(callCtx, &oauth2.Token{RefreshToken: refreshToken})
		t, err := src.Token()
		if err != nil {
			return asRemoteError(err)
		}
		token = t
		return nil
	}, conndomain.IsRetryableRemoteError)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Revoke invalidates a token at Google. Errors are returned so the caller
// can log them, but disconnect treats them as non-fatal.
func (s *Service) Revoke(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &conndomain.RemoteAPIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return nil
}

// UserEmail resolves the account email behind an access token.
func (s *Service) UserEmail(ctx context.Context, accessToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &conndomain.RemoteAPIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.Email == "" {
		return "", errors.New("userinfo response missing email")
	}
	return info.Email, nil
}

// asRemoteError converts oauth2 retrieval failures into RemoteAPIError so
// the retry policy can classify them.
func asRemoteError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &conndomain.RemoteAPIError{
			StatusCode: retrieveErr.Response.StatusCode,
			Message:    strings.TrimSpace(string(retrieveErr.Body)),
		}
	}
	return err
}
