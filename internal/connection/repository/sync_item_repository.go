package repository

import (
	"errors"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// syncItemRepository implements SyncItemRepository backed by gorm.
type syncItemRepository struct {
	db *gorm.DB
}

// NewSyncItemRepository creates a new instance of syncItemRepository
func NewSyncItemRepository(db *gorm.DB) SyncItemRepository {
	return &syncItemRepository{
		db: db,
	}
}

func (r *syncItemRepository) Get(connectionID, remoteID string) (*conndomain.SyncItem, error) {
	var item conndomain.SyncItem
	err := r.db.Where("connection_id = ? AND remote_id = ?", connectionID, remoteID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *syncItemRepository) GetByID(connectionID, id string) (*conndomain.SyncItem, error) {
	var item conndomain.SyncItem
	err := r.db.Where("connection_id = ? AND id = ?", connectionID, id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// Upsert writes through a single INSERT ... ON CONFLICT DO UPDATE on the
// (connection_id, remote_id) unique index, so racing writers are linearized
// by the database instead of a read-then-write.
func (r *syncItemRepository) Upsert(item *conndomain.SyncItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "mime_type", "size", "remote_modified_at",
			"status", "attempts", "last_error", "artifact_id", "updated_at",
		}),
	}).Create(item).Error
}

func (r *syncItemRepository) Update(item *conndomain.SyncItem) error {
	item.UpdatedAt = time.Now()
	return r.db.Save(item).Error
}

func (r *syncItemRepository) ListByStatus(connectionID string, status conndomain.SyncItemStatus) ([]*conndomain.SyncItem, error) {
	var items []*conndomain.SyncItem
	err := r.db.Where("connection_id = ? AND status = ?", connectionID, status).Order("created_at ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *syncItemRepository) CountByStatus(connectionID string) (map[conndomain.SyncItemStatus]int, error) {
	type row struct {
		Status conndomain.SyncItemStatus
		Count  int
	}
	var rows []row
	err := r.db.Model(&conndomain.SyncItem{}).
		Select("status, count(*) as count").
		Where("connection_id = ?", connectionID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[conndomain.SyncItemStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (r *syncItemRepository) RecentErrors(connectionID string, limit int) ([]*conndomain.SyncItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var items []*conndomain.SyncItem
	err := r.db.Where("connection_id = ? AND status = ?", connectionID, conndomain.SyncItemFailed).
		Order("updated_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
