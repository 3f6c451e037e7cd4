package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
)

// In-memory repositories and provider fakes shared by the tests in this
// package.

type fakeConnRepo struct {
	mu          sync.Mutex
	conns       map[string]*conndomain.Connection
	nextID      int
	finishCalls int
	findErr     error // returned by the next FindByID call, then cleared
}

func (r *fakeConnRepo) failNextFind(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{conns: make(map[string]*conndomain.Connection)}
}

func (r *fakeConnRepo) Create(conn *conndomain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn.ID == "" {
		r.nextID++
		conn.ID = fmt.Sprintf("conn-%d", r.nextID)
	}
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *fakeConnRepo) FindByID(id string) (*conndomain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		err := r.findErr
		r.findErr = nil
		return nil, err
	}
	conn, ok := r.conns[id]
	if !ok {
		return nil, nil
	}
	cp := *conn
	return &cp, nil
}

func (r *fakeConnRepo) FindByUserAndID(userID, id string) (*conndomain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok || conn.UserID != userID {
		return nil, nil
	}
	cp := *conn
	return &cp, nil
}

func (r *fakeConnRepo) FindByUserProviderAccount(userID string, provider conndomain.Provider, accountEmail string) (*conndomain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn.UserID == userID && conn.Provider == provider && conn.AccountEmail == accountEmail {
			cp := *conn
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeConnRepo) FindByProviderAccount(provider conndomain.Provider, accountEmail string) (*conndomain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn.Provider == provider && conn.AccountEmail == accountEmail {
			cp := *conn
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeConnRepo) ListByUser(userID string) ([]*conndomain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conndomain.Connection
	for _, conn := range r.conns {
		if conn.UserID == userID {
			cp := *conn
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeConnRepo) Update(conn *conndomain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID]; !ok {
		return errors.New("connection not found")
	}
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *fakeConnRepo) UpdateTokens(id, accessToken, refreshToken string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return errors.New("connection not found")
	}
	conn.AccessToken = accessToken
	if refreshToken != "" {
		conn.RefreshToken = refreshToken
	}
	conn.TokenExpiry = expiry
	return nil
}

func (r *fakeConnRepo) TryBeginSync(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return false, nil
	}
	if conn.Status == conndomain.ConnectionSyncing {
		return false, nil
	}
	conn.Status = conndomain.ConnectionSyncing
	return true, nil
}

func (r *fakeConnRepo) FinishSync(id string, status conndomain.ConnectionStatus, total, synced, failed int, lastSync time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishCalls++
	conn, ok := r.conns[id]
	if !ok {
		return errors.New("connection not found")
	}
	conn.Status = status
	conn.TotalItems = total
	conn.SyncedItems = synced
	conn.FailedItems = failed
	conn.LastSyncAt = &lastSync
	return nil
}

func (r *fakeConnRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	return nil
}

type fakeItemRepo struct {
	mu     sync.Mutex
	items  map[string]*conndomain.SyncItem // keyed by connectionID/remoteID
	nextID int
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[string]*conndomain.SyncItem)}
}

func itemKey(connectionID, remoteID string) string {
	return connectionID + "/" + remoteID
}

func (r *fakeItemRepo) Get(connectionID, remoteID string) (*conndomain.SyncItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemKey(connectionID, remoteID)]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *fakeItemRepo) GetByID(connectionID, id string) (*conndomain.SyncItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ConnectionID == connectionID && item.ID == id {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeItemRepo) Upsert(item *conndomain.SyncItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey(item.ConnectionID, item.RemoteID)
	if existing, ok := r.items[key]; ok {
		item.ID = existing.ID
	} else if item.ID == "" {
		r.nextID++
		item.ID = fmt.Sprintf("item-%d", r.nextID)
	}
	cp := *item
	r.items[key] = &cp
	return nil
}

func (r *fakeItemRepo) Update(item *conndomain.SyncItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.items[itemKey(item.ConnectionID, item.RemoteID)] = &cp
	return nil
}

func (r *fakeItemRepo) ListByStatus(connectionID string, status conndomain.SyncItemStatus) ([]*conndomain.SyncItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conndomain.SyncItem
	for _, item := range r.items {
		if item.ConnectionID == connectionID && item.Status == status {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) CountByStatus(connectionID string) (map[conndomain.SyncItemStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[conndomain.SyncItemStatus]int)
	for _, item := range r.items {
		if item.ConnectionID == connectionID {
			counts[item.Status]++
		}
	}
	return counts, nil
}

func (r *fakeItemRepo) RecentErrors(connectionID string, limit int) ([]*conndomain.SyncItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conndomain.SyncItem
	for _, item := range r.items {
		if item.ConnectionID == connectionID && item.Status == conndomain.SyncItemFailed {
			cp := *item
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeLister serves a fixed item list in one page.
type fakeLister struct {
	mu    sync.Mutex
	items []conndomain.RemoteItem
	err   error
}

func (l *fakeLister) List(ctx context.Context, accessToken, refreshToken string, scope conndomain.ListScope, pageToken string, onTokenRefresh conndomain.TokenUpdateFunc) (*conndomain.RemotePage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	items := make([]conndomain.RemoteItem, len(l.items))
	copy(items, l.items)
	return &conndomain.RemotePage{Items: items}, nil
}

func (l *fakeLister) setItems(items []conndomain.RemoteItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
}

// fakeIngestor records calls and fails configured remote ids.
type fakeIngestor struct {
	mu       sync.Mutex
	failIDs  map[string]bool
	calls    map[string]int
	onIngest func(item conndomain.RemoteItem)
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{
		failIDs: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeIngestor) Ingest(ctx context.Context, conn *conndomain.Connection, item conndomain.RemoteItem, accessToken, refreshToken string, onTokenRefresh conndomain.TokenUpdateFunc) (string, error) {
	f.mu.Lock()
	f.calls[item.ID]++
	fail := f.failIDs[item.ID]
	hook := f.onIngest
	f.mu.Unlock()

	if hook != nil {
		hook(item)
	}
	if fail {
		return "", errors.New("ingest exploded")
	}
	return "artifact-" + item.ID, nil
}

func (f *fakeIngestor) callCount(remoteID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[remoteID]
}
