package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	"lexhub-backend/internal/connection/repository"
	"lexhub-backend/pkg/crypto"
	"lexhub-backend/pkg/googleauth"

	"golang.org/x/oauth2"
)

// refreshMargin is how close to expiry a token may get before EnsureFresh
// refreshes it proactively.
const refreshMargin = 5 * time.Minute

// TokenVault is the encryption and refresh boundary for stored OAuth
// credentials. Tokens only exist in plaintext inside a request; everything
// that reaches the database goes through Seal.
type TokenVault struct {
	connRepo      repository.ConnectionRepository
	oauth         *googleauth.Service
	encryptionKey string

	// Serializes refreshes per connection so two racing requests do not
	// both hit the vendor refresh endpoint.
	refreshLocks map[string]*sync.Mutex
	locksMu      sync.Mutex
}

// NewTokenVault creates a new TokenVault.
func NewTokenVault(connRepo repository.ConnectionRepository, oauth *googleauth.Service, encryptionKey string) *TokenVault {
	return &TokenVault{
		connRepo:      connRepo,
		oauth:         oauth,
		encryptionKey: encryptionKey,
		refreshLocks:  make(map[string]*sync.Mutex),
	}
}

// Seal encrypts tokens into the connection struct without persisting it.
// Used when the connection row is about to be created or saved by the caller.
func (v *TokenVault) Seal(conn *conndomain.Connection, accessToken, refreshToken string, expiry time.Time) error {
	encAccess, err := crypto.Encrypt(accessToken, v.encryptionKey)
	if err != nil {
		return err
	}
	conn.AccessToken = encAccess

	if refreshToken != "" {
		encRefresh, err := crypto.Encrypt(refreshToken, v.encryptionKey)
		if err != nil {
			return err
		}
		conn.RefreshToken = encRefresh
	}
	conn.TokenExpiry = expiry
	return nil
}

// Store encrypts and persists tokens for an existing connection.
func (v *TokenVault) Store(connectionID, accessToken, refreshToken string, expiry time.Time) error {
	encAccess, err := crypto.Encrypt(accessToken, v.encryptionKey)
	if err != nil {
		return err
	}
	encRefresh := ""
	if refreshToken != "" {
		encRefresh, err = crypto.Encrypt(refreshToken, v.encryptionKey)
		if err != nil {
			return err
		}
	}
	return v.connRepo.UpdateTokens(connectionID, encAccess, encRefresh, expiry)
}

// Retrieve decrypts the connection's tokens.
func (v *TokenVault) Retrieve(conn *conndomain.Connection) (accessToken, refreshToken string, err error) {
	accessToken, err = crypto.Decrypt(conn.AccessToken, v.encryptionKey)
	if err != nil {
		return "", "", err
	}
	if conn.RefreshToken != "" {
		refreshToken, err = crypto.Decrypt(conn.RefreshToken, v.encryptionKey)
		if err != nil {
			return "", "", err
		}
	}
	return accessToken, refreshToken, nil
}

// EnsureFresh returns a usable access token, refreshing it first when the
// stored one is expired or inside the safety margin. Safe under concurrent
// callers for the same connection: a per-connection mutex serializes the
// refresh and the connection is re-read under the lock, so the loser of the
// race sees the winner's token and skips its own refresh.
func (v *TokenVault) EnsureFresh(ctx context.Context, connectionID string) (accessToken, refreshToken string, err error) {
	lock := v.lockFor(connectionID)
	lock.Lock()
	defer lock.Unlock()

	conn, err := v.connRepo.FindByID(connectionID)
	if err != nil {
		return "", "", err
	}
	if conn == nil {
		return "", "", conndomain.ErrNotFound
	}

	accessToken, refreshToken, err = v.Retrieve(conn)
	if err != nil {
		return "", "", err
	}

	if !v.needsRefresh(conn) || refreshToken == "" {
		return accessToken, refreshToken, nil
	}

	token, err := v.oauth.Refresh(ctx, conn.Provider, refreshToken)
	if err != nil {
		return "", "", err
	}

	newRefresh := refreshToken
	if token.RefreshToken != "" {
		newRefresh = token.RefreshToken
	}
	if err := v.Store(connectionID, token.AccessToken, newRefresh, token.Expiry); err != nil {
		return "", "", err
	}
	log.Printf("[Vault] Refreshed access token for connection %s (expires %s)", connectionID, token.Expiry.Format(time.RFC3339))
	return token.AccessToken, newRefresh, nil
}

func (v *TokenVault) needsRefresh(conn *conndomain.Connection) bool {
	if conn.TokenExpiry.IsZero() {
		return true
	}
	return time.Until(conn.TokenExpiry) < refreshMargin
}

// Revoke invalidates a token at the vendor. Best effort: failures are
// logged and swallowed so disconnect always proceeds locally.
func (v *TokenVault) Revoke(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := v.oauth.Revoke(ctx, accessToken); err != nil {
		log.Printf("[Vault] Token revocation failed (continuing disconnect): %v", err)
	}
}

// UpdateCallback returns a TokenUpdateFunc that re-encrypts and persists
// tokens refreshed by the oauth2 transport mid-call.
func (v *TokenVault) UpdateCallback(connectionID string) conndomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		return v.Store(connectionID, token.AccessToken, token.RefreshToken, token.Expiry)
	}
}

func (v *TokenVault) lockFor(connectionID string) *sync.Mutex {
	v.locksMu.Lock()
	defer v.locksMu.Unlock()

	lock, ok := v.refreshLocks[connectionID]
	if !ok {
		lock = &sync.Mutex{}
		v.refreshLocks[connectionID] = lock
	}
	return lock
}
