package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	"lexhub-backend/pkg/crypto"
	"lexhub-backend/pkg/googleauth"
	"lexhub-backend/pkg/retry"
)

// newTokenServer serves the OAuth token endpoint and counts refresh calls.
func newTokenServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
}

func newTestVault(connRepo *fakeConnRepo, tokenURL string) *TokenVault {
	oauth := googleauth.NewService("client-id", "client-secret", "http://localhost/cb",
		googleauth.WithEndpoint(tokenURL+"/auth", tokenURL+"/token"),
		googleauth.WithRetryPolicy(retry.None),
	)
	return NewTokenVault(connRepo, oauth, testEncryptionKey)
}

func sealConnection(t *testing.T, repo *fakeConnRepo, vault *TokenVault, refreshToken string, expiry time.Time) *conndomain.Connection {
	t.Helper()
	conn := &conndomain.Connection{
		UserID:       "user-1",
		Provider:     conndomain.ProviderGmail,
		AccountEmail: "owner@example.com",
		Status:       conndomain.ConnectionConnected,
	}
	if err := vault.Seal(conn, "stored-access", refreshToken, expiry); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := repo.Create(conn); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return conn
}

func TestEnsureFreshSkipsValidToken(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	connRepo := newFakeConnRepo()
	vault := newTestVault(connRepo, server.URL)
	conn := sealConnection(t, connRepo, vault, "stored-refresh", time.Now().Add(time.Hour))

	access, refresh, err := vault.EnsureFresh(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if access != "stored-access" || refresh != "stored-refresh" {
		t.Errorf("tokens = %q/%q, want stored ones", access, refresh)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("refresh endpoint hit %d times for a fresh token", n)
	}
}

func TestEnsureFreshRefreshesExpiredToken(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	connRepo := newFakeConnRepo()
	vault := newTestVault(connRepo, server.URL)
	conn := sealConnection(t, connRepo, vault, "stored-refresh", time.Now().Add(-time.Minute))

	access, refresh, err := vault.EnsureFresh(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if access != "fresh-access" {
		t.Errorf("access = %q, want fresh-access", access)
	}
	if refresh != "fresh-refresh" {
		t.Errorf("refresh = %q, want fresh-refresh", refresh)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("refresh endpoint hit %d times, want 1", n)
	}

	// The new token is persisted encrypted, never in plaintext.
	stored, _ := connRepo.FindByID(conn.ID)
	if stored.AccessToken == "fresh-access" {
		t.Error("access token stored in plaintext")
	}
	plain, err := crypto.Decrypt(stored.AccessToken, testEncryptionKey)
	if err != nil {
		t.Fatalf("Decrypt stored token: %v", err)
	}
	if plain != "fresh-access" {
		t.Errorf("stored token decrypts to %q", plain)
	}
}

func TestEnsureFreshRefreshesInsideMargin(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	connRepo := newFakeConnRepo()
	vault := newTestVault(connRepo, server.URL)
	// Not yet expired but inside the proactive refresh margin
	conn := sealConnection(t, connRepo, vault, "stored-refresh", time.Now().Add(2*time.Minute))

	access, _, err := vault.EnsureFresh(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if access != "fresh-access" {
		t.Errorf("access = %q, want proactive refresh", access)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("refresh endpoint hit %d times, want 1", n)
	}
}

func TestEnsureFreshWithoutRefreshToken(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	connRepo := newFakeConnRepo()
	vault := newTestVault(connRepo, server.URL)
	// Expired and no refresh token: the stored token is all we have.
	conn := sealConnection(t, connRepo, vault, "", time.Now().Add(-time.Hour))

	access, refresh, err := vault.EnsureFresh(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if access != "stored-access" || refresh != "" {
		t.Errorf("tokens = %q/%q, want stored access and empty refresh", access, refresh)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("refresh endpoint hit %d times without a refresh token", n)
	}
}

func TestEnsureFreshConcurrent(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	connRepo := newFakeConnRepo()
	vault := newTestVault(connRepo, server.URL)
	conn := sealConnection(t, connRepo, vault, "stored-refresh", time.Now().Add(-time.Minute))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = vault.EnsureFresh(context.Background(), conn.ID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("EnsureFresh #%d: %v", i, err)
		}
	}
	// The per-connection lock serializes refreshes and losers re-read the
	// winner's token, so the vendor is hit exactly once.
	if n := calls.Load(); n != 1 {
		t.Errorf("refresh endpoint hit %d times, want 1", n)
	}
}

func TestEnsureFreshUnknownConnection(t *testing.T) {
	connRepo := newFakeConnRepo()
	vault := newTestVault(connRepo, "http://localhost:0")

	_, _, err := vault.EnsureFresh(context.Background(), "no-such-conn")
	if !errors.Is(err, conndomain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	connRepo := newFakeConnRepo()
	vault := NewTokenVault(connRepo, nil, testEncryptionKey)
	conn := sealConnection(t, connRepo, vault, "refresh-1", time.Now().Add(time.Hour))

	if err := vault.Store(conn.ID, "access-2", "refresh-2", time.Now().Add(2*time.Hour)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	stored, _ := connRepo.FindByID(conn.ID)
	access, refresh, err := vault.Retrieve(stored)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if access != "access-2" || refresh != "refresh-2" {
		t.Errorf("round trip = %q/%q, want access-2/refresh-2", access, refresh)
	}
}
