package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	conndto "lexhub-backend/internal/connection/dto"
	"lexhub-backend/internal/connection/repository"
	"lexhub-backend/pkg/gmail"
	"lexhub-backend/pkg/googleauth"

	"github.com/golang-jwt/jwt/v5"
)

// stateExpiry bounds how long an OAuth consent round-trip may take.
const stateExpiry = 10 * time.Minute

// connectionUsecase implements ConnectionUsecase.
type connectionUsecase struct {
	connRepo   repository.ConnectionRepository
	itemRepo   repository.SyncItemRepository
	vault      *TokenVault
	oauth      *googleauth.Service
	reconciler *Reconciler
	jwtSecret  string
}

// NewConnectionUsecase creates a new instance of connectionUsecase
func NewConnectionUsecase(connRepo repository.ConnectionRepository, itemRepo repository.SyncItemRepository, vault *TokenVault, oauth *googleauth.Service, reconciler *Reconciler, jwtSecret string) ConnectionUsecase {
	return &connectionUsecase{
		connRepo:   connRepo,
		itemRepo:   itemRepo,
		vault:      vault,
		oauth:      oauth,
		reconciler: reconciler,
		jwtSecret:  jwtSecret,
	}
}

// Connect starts the OAuth flow. The state parameter is a short-lived
// signed token carrying the user and provider, since the callback arrives
// on an unauthenticated redirect.
func (u *connectionUsecase) Connect(userID string, provider conndomain.Provider) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"provider": string(provider),
		"exp":      time.Now().Add(stateExpiry).Unix(),
		"iat":      time.Now().Unix(),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.jwtSecret))
	if err != nil {
		return "", err
	}
	return u.oauth.ConsentURL(provider, state)
}

func (u *connectionUsecase) parseState(state string) (userID string, provider conndomain.Provider, err error) {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid or expired state parameter")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid state claims")
	}
	userID, _ = claims["user_id"].(string)
	providerStr, _ := claims["provider"].(string)
	if userID == "" || providerStr == "" {
		return "", "", errors.New("invalid state claims")
	}
	return userID, conndomain.Provider(providerStr), nil
}

// HandleCallback exchanges the authorization code and creates the
// connection in pending_setup, or refreshes tokens on an existing one.
func (u *connectionUsecase) HandleCallback(ctx context.Context, state, code string) (*conndomain.Connection, error) {
	userID, provider, err := u.parseState(state)
	if err != nil {
		return nil, err
	}

	token, err := u.oauth.Exchange(ctx, provider, code)
	if err != nil {
		return nil, err
	}

	accountEmail, err := u.oauth.UserEmail(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	// At most one active connection per (user, provider, account email)
	existing, err := u.connRepo.FindByUserProviderAccount(userID, provider, accountEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := u.vault.Store(existing.ID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
			return nil, err
		}
		log.Printf("[Connection] Re-authorized %s for user %s (%s)", provider, userID, accountEmail)
		return u.connRepo.FindByID(existing.ID)
	}

	conn := &conndomain.Connection{
		UserID:       userID,
		Provider:     provider,
		AccountEmail: accountEmail,
		Status:       conndomain.ConnectionPendingSetup,
		Frequency:    conndomain.FrequencyManual,
	}
	if err := u.vault.Seal(conn, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		return nil, err
	}
	if err := u.connRepo.Create(conn); err != nil {
		return nil, err
	}
	log.Printf("[Connection] Created %s connection %s for user %s (%s)", provider, conn.ID, userID, accountEmail)
	return conn, nil
}

// FinalizeScope sets what the connection syncs and flips it to connected.
func (u *connectionUsecase) FinalizeScope(userID, connectionID string, req *conndto.ScopeRequest) (*conndomain.Connection, error) {
	conn, err := u.owned(userID, connectionID)
	if err != nil {
		return nil, err
	}

	switch conn.Provider {
	case conndomain.ProviderGoogleDrive:
		if req.FolderID == "" {
			return nil, errors.New("folder_id is required for drive connections")
		}
		conn.FolderID = req.FolderID
		conn.FolderPath = req.FolderPath
		conn.Recursive = req.Recursive
	case conndomain.ProviderGmail:
		if len(req.Keywords) == 0 {
			return nil, errors.New("at least one keyword is required for gmail connections")
		}
		var after time.Time
		if req.AfterDate != "" {
			after, err = time.Parse("2006-01-02", req.AfterDate)
			if err != nil {
				return nil, fmt.Errorf("invalid after_date: %v", err)
			}
		}
		conn.Query = gmail.BuildQuery(req.Keywords, after)
	}

	if req.Frequency != "" {
		conn.Frequency = conndomain.SyncFrequency(req.Frequency)
	}
	conn.Status = conndomain.ConnectionConnected
	conn.NextSyncAt = nextSyncTime(conn.Frequency)

	if err := u.connRepo.Update(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func nextSyncTime(freq conndomain.SyncFrequency) *time.Time {
	var next time.Time
	switch freq {
	case conndomain.FrequencyHourly:
		next = time.Now().Add(time.Hour)
	case conndomain.FrequencyDaily:
		next = time.Now().Add(24 * time.Hour)
	default:
		return nil
	}
	return &next
}

func (u *connectionUsecase) List(userID string) ([]*conndomain.Connection, error) {
	return u.connRepo.ListByUser(userID)
}

// Status returns the connection with per-status counts and a bounded list
// of recent item errors.
func (u *connectionUsecase) Status(userID, connectionID string) (*conndto.StatusResponse, error) {
	conn, err := u.owned(userID, connectionID)
	if err != nil {
		return nil, err
	}

	counts, err := u.itemRepo.CountByStatus(connectionID)
	if err != nil {
		return nil, err
	}
	counters := make(map[string]int, len(counts))
	for status, count := range counts {
		counters[string(status)] = count
	}

	failures, err := u.itemRepo.RecentErrors(connectionID, 10)
	if err != nil {
		return nil, err
	}
	recentErrors := make([]conndto.ItemError, 0, len(failures))
	for _, item := range failures {
		recentErrors = append(recentErrors, conndto.ItemError{
			ItemID:   item.ID,
			RemoteID: item.RemoteID,
			Name:     item.Name,
			Attempts: item.Attempts,
			Error:    item.LastError,
		})
	}

	return &conndto.StatusResponse{
		Connection:   conn,
		Counters:     counters,
		RecentErrors: recentErrors,
	}, nil
}

// TriggerSync kicks a reconciliation run detached from the request. The
// in-progress guard still reports ErrSyncInProgress synchronously.
func (u *connectionUsecase) TriggerSync(userID, connectionID string) error {
	if _, err := u.owned(userID, connectionID); err != nil {
		return err
	}
	return u.reconciler.SyncAsync(connectionID)
}

// RetryItem resets a permanently failed item to pending so the next sync
// picks it up again.
func (u *connectionUsecase) RetryItem(userID, connectionID, itemID string) error {
	if _, err := u.owned(userID, connectionID); err != nil {
		return err
	}

	item, err := u.itemRepo.GetByID(connectionID, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return conndomain.ErrItemNotFound
	}
	if item.Status != conndomain.SyncItemFailed {
		return fmt.Errorf("item %s is %s, only failed items can be retried", itemID, item.Status)
	}

	item.Status = conndomain.SyncItemPending
	item.Attempts = 0
	item.LastError = ""
	return u.itemRepo.Update(item)
}

// Disconnect revokes the token (best effort) and deletes the connection
// with its sync items. Local deletion always proceeds.
func (u *connectionUsecase) Disconnect(ctx context.Context, userID, connectionID string) error {
	conn, err := u.owned(userID, connectionID)
	if err != nil {
		return err
	}

	if accessToken, _, decErr := u.vault.Retrieve(conn); decErr == nil {
		u.vault.Revoke(ctx, accessToken)
	} else {
		log.Printf("[Connection] Could not decrypt token for revocation on %s: %v", connectionID, decErr)
	}

	if err := u.connRepo.Delete(connectionID); err != nil {
		return err
	}
	log.Printf("[Connection] Disconnected %s for user %s", connectionID, userID)
	return nil
}

// owned loads a connection and enforces ownership. Foreign ids map to
// ErrNotFound so the API does not leak which ids exist.
func (u *connectionUsecase) owned(userID, connectionID string) (*conndomain.Connection, error) {
	conn, err := u.connRepo.FindByUserAndID(userID, connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, conndomain.ErrNotFound
	}
	return conn, nil
}
