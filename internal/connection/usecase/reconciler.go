package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"
	"lexhub-backend/internal/connection/repository"
)

// FinishedHook is invoked after a sync run completes, e.g. to push a
// notification to the owner's devices.
type FinishedHook func(conn *conndomain.Connection, synced, failed int)

// Reconciler drives the per-connection sync state machine: it lists remote
// items, diffs them against stored SyncItems, ingests what is new or
// changed, and records every outcome durably as it goes.
type Reconciler struct {
	connRepo    repository.ConnectionRepository
	itemRepo    repository.SyncItemRepository
	vault       *TokenVault
	listers     map[conndomain.Provider]conndomain.RemoteLister
	ingestor    conndomain.Ingestor
	concurrency int
	maxAttempts int
	onFinished  FinishedHook
}

// NewReconciler creates a new Reconciler. concurrency bounds how many items
// are ingested at once; maxAttempts caps retries of failed items.
func NewReconciler(connRepo repository.ConnectionRepository, itemRepo repository.SyncItemRepository, vault *TokenVault, listers map[conndomain.Provider]conndomain.RemoteLister, ingestor conndomain.Ingestor, concurrency, maxAttempts int) *Reconciler {
	if concurrency <= 0 {
		concurrency = 5
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Reconciler{
		connRepo:    connRepo,
		itemRepo:    itemRepo,
		vault:       vault,
		listers:     listers,
		ingestor:    ingestor,
		concurrency: concurrency,
		maxAttempts: maxAttempts,
	}
}

// SetFinishedHook wires a post-run callback after creation.
func (r *Reconciler) SetFinishedHook(hook FinishedHook) {
	r.onFinished = hook
}

// Sync runs one reconciliation pass for a connection. At most one run per
// connection is in flight at a time; a second trigger gets
// ErrSyncInProgress and must not mutate any sync state.
func (r *Reconciler) Sync(ctx context.Context, connectionID string) error {
	conn, err := r.begin(connectionID)
	if err != nil {
		return err
	}
	return r.run(ctx, conn)
}

// SyncAsync acquires the run guard synchronously, so the caller still gets
// ErrSyncInProgress, then reconciles detached from the triggering request.
func (r *Reconciler) SyncAsync(connectionID string) error {
	conn, err := r.begin(connectionID)
	if err != nil {
		return err
	}
	go func() {
		if err := r.run(context.Background(), conn); err != nil {
			log.Printf("[Sync] Background run for connection %s failed: %v", conn.ID, err)
		}
	}()
	return nil
}

// begin flips the connection into syncing or reports why it cannot.
func (r *Reconciler) begin(connectionID string) (*conndomain.Connection, error) {
	conn, err := r.connRepo.FindByID(connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, conndomain.ErrNotFound
	}

	won, err := r.connRepo.TryBeginSync(connectionID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, conndomain.ErrSyncInProgress
	}
	return conn, nil
}

func (r *Reconciler) run(ctx context.Context, conn *conndomain.Connection) error {
	log.Printf("[Sync] Starting run for connection %s (%s)", conn.ID, conn.Provider)

	accessToken, refreshToken, err := r.vault.EnsureFresh(ctx, conn.ID)
	if err != nil {
		r.finishRun(conn, 0, 0, fmt.Sprintf("token refresh failed: %v", err))
		return err
	}

	lister, ok := r.listers[conn.Provider]
	if !ok {
		err := fmt.Errorf("no lister registered for provider %s", conn.Provider)
		r.finishRun(conn, 0, 0, err.Error())
		return err
	}

	candidates, err := r.listAll(ctx, lister, conn, accessToken, refreshToken)
	if err != nil {
		r.finishRun(conn, 0, 0, fmt.Sprintf("listing failed: %v", err))
		return err
	}
	log.Printf("[Sync] Connection %s: %d remote candidates", conn.ID, len(candidates))

	if err := r.diff(conn, candidates); err != nil {
		r.finishRun(conn, 0, 0, fmt.Sprintf("diff failed: %v", err))
		return err
	}

	pending, err := r.itemRepo.ListByStatus(conn.ID, conndomain.SyncItemPending)
	if err != nil {
		r.finishRun(conn, 0, 0, fmt.Sprintf("loading pending items failed: %v", err))
		return err
	}

	succeeded, failed, gone, stopErr := r.processPending(ctx, conn, pending, accessToken, refreshToken)
	if gone {
		// Connection was disconnected mid-run; its rows are gone, nothing
		// left to finalize.
		log.Printf("[Sync] Connection %s disappeared mid-run, aborting", conn.ID)
		return nil
	}
	if stopErr != nil {
		// The run stopped early but the connection still exists; settle
		// its status so the sync guard is released.
		r.finishRun(conn, succeeded, failed, fmt.Sprintf("run interrupted: %v", stopErr))
		return stopErr
	}

	r.finishRun(conn, succeeded, failed, "")
	return nil
}

// listAll pages through the lister until the cursor is exhausted.
func (r *Reconciler) listAll(ctx context.Context, lister conndomain.RemoteLister, conn *conndomain.Connection, accessToken, refreshToken string) ([]conndomain.RemoteItem, error) {
	scope := conndomain.ListScope{
		FolderID:  conn.FolderID,
		Recursive: conn.Recursive,
		Query:     conn.Query,
	}
	onRefresh := r.vault.UpdateCallback(conn.ID)

	var items []conndomain.RemoteItem
	pageToken := ""
	for {
		page, err := lister.List(ctx, accessToken, refreshToken, scope, pageToken, onRefresh)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.NextPageToken == "" {
			return items, nil
		}
		pageToken = page.NextPageToken
	}
}

// diff reconciles the candidate list against stored SyncItems:
// unseen items become pending; completed items are re-queued only when the
// remote copy is strictly newer; failed items are re-queued until the
// attempt cap, after which they stay failed for good.
func (r *Reconciler) diff(conn *conndomain.Connection, candidates []conndomain.RemoteItem) error {
	for _, candidate := range candidates {
		existing, err := r.itemRepo.Get(conn.ID, candidate.ID)
		if err != nil {
			return err
		}

		if existing == nil {
			item := &conndomain.SyncItem{
				ConnectionID:     conn.ID,
				RemoteID:         candidate.ID,
				Name:             candidate.Name,
				MimeType:         candidate.MimeType,
				Size:             candidate.Size,
				RemoteModifiedAt: candidate.ModifiedAt,
				Status:           conndomain.SyncItemPending,
			}
			if err := r.itemRepo.Upsert(item); err != nil {
				return err
			}
			continue
		}

		switch existing.Status {
		case conndomain.SyncItemCompleted:
			if candidate.ModifiedAt.After(existing.RemoteModifiedAt) {
				existing.Name = candidate.Name
				existing.Size = candidate.Size
				existing.RemoteModifiedAt = candidate.ModifiedAt
				existing.Status = conndomain.SyncItemPending
				if err := r.itemRepo.Update(existing); err != nil {
					return err
				}
			}
		case conndomain.SyncItemFailed:
			if existing.Attempts < r.maxAttempts {
				existing.Status = conndomain.SyncItemPending
				if err := r.itemRepo.Update(existing); err != nil {
					return err
				}
			}
		}
		// pending and syncing items are picked up as-is
	}
	return nil
}

// processPending ingests pending items with bounded concurrency. One item's
// failure never blocks its siblings; every outcome is persisted before the
// run moves on, so an aborted run loses no progress. gone reports that the
// connection row itself vanished mid-run; runErr carries any other
// condition that stopped the run early.
func (r *Reconciler) processPending(ctx context.Context, conn *conndomain.Connection, pending []*conndomain.SyncItem, accessToken, refreshToken string) (succeeded, failed int, gone bool, runErr error) {
	var (
		okCount   atomic.Int64
		failCount atomic.Int64
		stopped   atomic.Bool
		deleted   atomic.Bool
		wg        sync.WaitGroup

		errMu    sync.Mutex
		firstErr error
	)
	stop := func(err error) {
		stopped.Store(true)
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}
	semaphore := make(chan struct{}, r.concurrency)
	onRefresh := r.vault.UpdateCallback(conn.ID)

	for _, item := range pending {
		if stopped.Load() {
			break
		}

		wg.Add(1)
		go func(item *conndomain.SyncItem) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if stopped.Load() {
				return
			}

			// Item boundary: a disconnect during the run deletes the
			// connection; stop without writing state for deleted rows. A
			// failed read is not a disconnect: the run stops, but the
			// connection status must still be settled afterwards.
			current, err := r.connRepo.FindByID(conn.ID)
			if err != nil {
				stop(fmt.Errorf("connection check failed: %v", err))
				return
			}
			if current == nil {
				stopped.Store(true)
				deleted.Store(true)
				return
			}
			if err := ctx.Err(); err != nil {
				stop(err)
				return
			}

			if r.processItem(ctx, conn, item, accessToken, refreshToken, onRefresh) {
				okCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(item)
	}

	wg.Wait()
	errMu.Lock()
	runErr = firstErr
	errMu.Unlock()
	return int(okCount.Load()), int(failCount.Load()), deleted.Load(), runErr
}

// processItem walks one item through syncing -> completed/failed and
// reports success.
func (r *Reconciler) processItem(ctx context.Context, conn *conndomain.Connection, item *conndomain.SyncItem, accessToken, refreshToken string, onRefresh conndomain.TokenUpdateFunc) bool {
	item.Status = conndomain.SyncItemSyncing
	if err := r.itemRepo.Update(item); err != nil {
		log.Printf("[Sync] Failed to mark item %s syncing: %v", item.RemoteID, err)
		return false
	}

	remote := conndomain.RemoteItem{
		ID:         item.RemoteID,
		Name:       item.Name,
		MimeType:   item.MimeType,
		Size:       item.Size,
		ModifiedAt: item.RemoteModifiedAt,
	}

	artifactID, err := r.ingestor.Ingest(ctx, conn, remote, accessToken, refreshToken, onRefresh)
	if err != nil {
		item.Status = conndomain.SyncItemFailed
		item.Attempts++
		item.LastError = err.Error()
		if updateErr := r.itemRepo.Update(item); updateErr != nil {
			log.Printf("[Sync] Failed to record failure for item %s: %v", item.RemoteID, updateErr)
		}
		log.Printf("[Sync] Item %s failed (attempt %d): %v", item.RemoteID, item.Attempts, err)
		return false
	}

	item.Status = conndomain.SyncItemCompleted
	item.ArtifactID = artifactID
	item.LastError = ""
	if err := r.itemRepo.Update(item); err != nil {
		log.Printf("[Sync] Failed to record completion for item %s: %v", item.RemoteID, err)
		return false
	}
	return true
}

// finishRun recomputes aggregate counters from the item store and settles
// the connection status. Policy: a run ends in error only when it attempted
// at least one item and none succeeded (or it failed before processing
// anything); any successful item leaves the connection connected.
func (r *Reconciler) finishRun(conn *conndomain.Connection, succeeded, failed int, runErr string) {
	counts, err := r.itemRepo.CountByStatus(conn.ID)
	if err != nil {
		log.Printf("[Sync] Failed to count items for connection %s: %v", conn.ID, err)
		counts = map[conndomain.SyncItemStatus]int{}
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	status := conndomain.ConnectionConnected
	if runErr != "" {
		status = conndomain.ConnectionError
	} else if failed > 0 && succeeded == 0 {
		status = conndomain.ConnectionError
	}

	now := time.Now()
	if err := r.connRepo.FinishSync(conn.ID, status, total, counts[conndomain.SyncItemCompleted], counts[conndomain.SyncItemFailed], now); err != nil {
		log.Printf("[Sync] Failed to finalize connection %s: %v", conn.ID, err)
		return
	}
	log.Printf("[Sync] Connection %s finished: status=%s total=%d synced=%d failed=%d", conn.ID, status, total, counts[conndomain.SyncItemCompleted], counts[conndomain.SyncItemFailed])

	if r.onFinished != nil && runErr == "" {
		r.onFinished(conn, succeeded, failed)
	}
}
