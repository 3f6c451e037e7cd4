package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	conndto "lexhub-backend/internal/connection/dto"
	"lexhub-backend/pkg/googleauth"
	"lexhub-backend/pkg/retry"
)

func newTestUsecase(t *testing.T, connRepo *fakeConnRepo, itemRepo *fakeItemRepo, revokeURL string) (ConnectionUsecase, *TokenVault) {
	t.Helper()
	opts := []googleauth.Option{googleauth.WithRetryPolicy(retry.None)}
	if revokeURL != "" {
		opts = append(opts, googleauth.WithRevokeURL(revokeURL))
	}
	oauth := googleauth.NewService("client-id", "client-secret", "http://localhost/cb", opts...)
	vault := NewTokenVault(connRepo, oauth, testEncryptionKey)
	listers := map[conndomain.Provider]conndomain.RemoteLister{
		conndomain.ProviderGoogleDrive: &fakeLister{},
		conndomain.ProviderGmail:       &fakeLister{},
	}
	reconciler := NewReconciler(connRepo, itemRepo, vault, listers, newFakeIngestor(), 1, 3)
	return NewConnectionUsecase(connRepo, itemRepo, vault, oauth, reconciler, "test-jwt-secret"), vault
}

func TestStatusRejectsForeignConnection(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, "")
	conn := seedConnection(t, connRepo, vault)

	if _, err := uc.Status("someone-else", conn.ID); !errors.Is(err, conndomain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for foreign user", err)
	}

	if _, err := uc.Status("user-1", conn.ID); err != nil {
		t.Fatalf("owner Status: %v", err)
	}
}

func TestStatusReportsCountersAndErrors(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, "")
	conn := seedConnection(t, connRepo, vault)

	itemRepo.Upsert(&conndomain.SyncItem{ConnectionID: conn.ID, RemoteID: "a", Status: conndomain.SyncItemCompleted})
	itemRepo.Upsert(&conndomain.SyncItem{ConnectionID: conn.ID, RemoteID: "b", Status: conndomain.SyncItemFailed, Attempts: 3, LastError: "boom"})

	status, err := uc.Status("user-1", conn.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Counters["completed"] != 1 || status.Counters["failed"] != 1 {
		t.Errorf("counters = %v", status.Counters)
	}
	if len(status.RecentErrors) != 1 {
		t.Fatalf("recent errors = %d, want 1", len(status.RecentErrors))
	}
	if status.RecentErrors[0].Error != "boom" {
		t.Errorf("recent error = %q", status.RecentErrors[0].Error)
	}
}

func TestRetryItemResetsFailedItem(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, "")
	conn := seedConnection(t, connRepo, vault)

	item := &conndomain.SyncItem{ConnectionID: conn.ID, RemoteID: "r1", Status: conndomain.SyncItemFailed, Attempts: 3, LastError: "boom"}
	itemRepo.Upsert(item)

	if err := uc.RetryItem("user-1", conn.ID, item.ID); err != nil {
		t.Fatalf("RetryItem: %v", err)
	}

	got, _ := itemRepo.Get(conn.ID, "r1")
	if got.Status != conndomain.SyncItemPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.Attempts != 0 || got.LastError != "" {
		t.Errorf("attempts/lastError = %d/%q, want reset", got.Attempts, got.LastError)
	}
}

func TestRetryItemRejectsNonFailed(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, "")
	conn := seedConnection(t, connRepo, vault)

	item := &conndomain.SyncItem{ConnectionID: conn.ID, RemoteID: "r1", Status: conndomain.SyncItemCompleted}
	itemRepo.Upsert(item)

	if err := uc.RetryItem("user-1", conn.ID, item.ID); err == nil {
		t.Fatal("expected error retrying a completed item")
	}

	if err := uc.RetryItem("user-1", conn.ID, "ghost"); !errors.Is(err, conndomain.ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func TestDisconnectRevokesAndDeletes(t *testing.T) {
	var revokeCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		revokeCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, server.URL)
	conn := seedConnection(t, connRepo, vault)

	if err := uc.Disconnect(context.Background(), "user-1", conn.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if got, _ := connRepo.FindByID(conn.ID); got != nil {
		t.Error("connection still exists after disconnect")
	}
	if n := revokeCalls.Load(); n != 1 {
		t.Errorf("revoke endpoint hit %d times, want 1", n)
	}
}

func TestDisconnectSurvivesRevokeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, server.URL)
	conn := seedConnection(t, connRepo, vault)

	// Vendor rejecting the revocation must not block local deletion.
	if err := uc.Disconnect(context.Background(), "user-1", conn.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if got, _ := connRepo.FindByID(conn.ID); got != nil {
		t.Error("connection still exists after disconnect")
	}
}

func TestDisconnectForeignConnection(t *testing.T) {
	var revokeCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		revokeCalls.Add(1)
	}))
	defer server.Close()

	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, server.URL)
	conn := seedConnection(t, connRepo, vault)

	if err := uc.Disconnect(context.Background(), "someone-else", conn.ID); !errors.Is(err, conndomain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if got, _ := connRepo.FindByID(conn.ID); got == nil {
		t.Error("foreign disconnect deleted the connection")
	}
	if n := revokeCalls.Load(); n != 0 {
		t.Errorf("revoke endpoint hit %d times by a foreign user", n)
	}
}

func TestFinalizeScopeDriveRequiresFolder(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, "")
	conn := seedConnection(t, connRepo, vault)

	if _, err := uc.FinalizeScope("user-1", conn.ID, &conndto.ScopeRequest{}); err == nil {
		t.Fatal("expected error without folder_id")
	}

	got, err := uc.FinalizeScope("user-1", conn.ID, &conndto.ScopeRequest{
		FolderID:  "folder-9",
		Recursive: true,
		Frequency: "hourly",
	})
	if err != nil {
		t.Fatalf("FinalizeScope: %v", err)
	}
	if got.Status != conndomain.ConnectionConnected {
		t.Errorf("status = %s, want connected", got.Status)
	}
	if got.FolderID != "folder-9" || !got.Recursive {
		t.Errorf("scope not applied: %+v", got)
	}
	if got.NextSyncAt == nil {
		t.Error("NextSyncAt not scheduled for hourly frequency")
	}
}

func TestFinalizeScopeGmailBuildsQuery(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, "")

	conn := &conndomain.Connection{
		UserID:       "user-1",
		Provider:     conndomain.ProviderGmail,
		AccountEmail: "owner@example.com",
		Status:       conndomain.ConnectionPendingSetup,
	}
	if err := vault.Seal(conn, "access", "refresh", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	connRepo.Create(conn)

	if _, err := uc.FinalizeScope("user-1", conn.ID, &conndto.ScopeRequest{}); err == nil {
		t.Fatal("expected error without keywords")
	}

	got, err := uc.FinalizeScope("user-1", conn.ID, &conndto.ScopeRequest{
		Keywords:  []string{"contract", "renewal"},
		AfterDate: "2026-01-15",
	})
	if err != nil {
		t.Fatalf("FinalizeScope: %v", err)
	}
	want := "(contract OR renewal) after:2026/01/15"
	if got.Query != want {
		t.Errorf("query = %q, want %q", got.Query, want)
	}
}

func TestTriggerSyncOwnership(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, vault := newTestUsecase(t, connRepo, itemRepo, "")
	conn := seedConnection(t, connRepo, vault)

	if err := uc.TriggerSync("someone-else", conn.ID); !errors.Is(err, conndomain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConnectRoundTripsState(t *testing.T) {
	connRepo := newFakeConnRepo()
	itemRepo := newFakeItemRepo()
	uc, _ := newTestUsecase(t, connRepo, itemRepo, "")

	authURL, err := uc.Connect("user-1", conndomain.ProviderGoogleDrive)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if authURL == "" {
		t.Fatal("empty consent URL")
	}

	impl := uc.(*connectionUsecase)
	// Extract state from the URL the same way the vendor would echo it back.
	parsed, err := parseConsentState(authURL)
	if err != nil {
		t.Fatalf("parse consent URL: %v", err)
	}
	userID, provider, err := impl.parseState(parsed)
	if err != nil {
		t.Fatalf("parseState: %v", err)
	}
	if userID != "user-1" || provider != conndomain.ProviderGoogleDrive {
		t.Errorf("state decoded to %s/%s", userID, provider)
	}
}

func parseConsentState(authURL string) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", err
	}
	state := u.Query().Get("state")
	if state == "" {
		return "", errors.New("consent URL missing state")
	}
	return state, nil
}
