package repository

import (
	"errors"
	"time"

	docdomain "lexhub-backend/internal/document/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// emailRepository implements EmailRepository backed by gorm.
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) Upsert(email *docdomain.ProcessedEmail) error {
	var existing docdomain.ProcessedEmail
	err := r.db.Where("connection_id = ? AND message_id = ?", email.ConnectionID, email.MessageID).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now()
	if err == nil {
		email.ID = existing.ID
		email.CreatedAt = existing.CreatedAt
	} else {
		email.ID = uuid.New().String()
		email.CreatedAt = now
	}
	email.UpdatedAt = now

	return r.db.Save(email).Error
}

func (r *emailRepository) FindByUserAndID(userID, id string) (*docdomain.ProcessedEmail, error) {
	var email docdomain.ProcessedEmail
	err := r.db.Where("user_id = ? AND id = ?", userID, id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ListByUser(userID string, limit, offset int) ([]*docdomain.ProcessedEmail, error) {
	if limit <= 0 {
		limit = 50
	}
	var emails []*docdomain.ProcessedEmail
	err := r.db.Where("user_id = ?", userID).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) DeleteByConnection(connectionID string) error {
	return r.db.Where("connection_id = ?", connectionID).Delete(&docdomain.ProcessedEmail{}).Error
}
