package repository

import (
	"errors"
	"time"

	docdomain "lexhub-backend/internal/document/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// documentRepository implements DocumentRepository backed by gorm.
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new instance of documentRepository
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{
		db: db,
	}
}

// Upsert reads the existing row first so the caller gets the stable row id
// back; re-synced files keep their id and creation time.
func (r *documentRepository) Upsert(doc *docdomain.Document) error {
	var existing docdomain.Document
	err := r.db.Where("connection_id = ? AND remote_id = ?", doc.ConnectionID, doc.RemoteID).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now()
	if err == nil {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.ID = uuid.New().String()
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	return r.db.Save(doc).Error
}

func (r *documentRepository) FindByUserAndID(userID, id string) (*docdomain.Document, error) {
	var doc docdomain.Document
	err := r.db.Where("user_id = ? AND id = ?", userID, id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByUser(userID string, limit, offset int) ([]*docdomain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	var docs []*docdomain.Document
	err := r.db.Where("user_id = ?", userID).
		Order("remote_modified_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) FindByIDs(userID string, ids []string) ([]*docdomain.Document, error) {
	if len(ids) == 0 {
		return []*docdomain.Document{}, nil
	}
	var docs []*docdomain.Document
	err := r.db.Where("user_id = ? AND id IN ?", userID, ids).Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) DeleteByConnection(connectionID string) error {
	return r.db.Where("connection_id = ?", connectionID).Delete(&docdomain.Document{}).Error
}
