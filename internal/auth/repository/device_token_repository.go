package repository

import (
	"time"

	authdomain "lexhub-backend/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// deviceTokenRepository implements DeviceTokenRepository interface
type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new instance of deviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{
		db: db,
	}
}

func (r *deviceTokenRepository) Register(token *authdomain.DeviceToken) error {
	token.CreatedAt = time.Now()
	// Re-registering the same token moves it to the current user
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "created_at"}),
	}).Create(token).Error
}

func (r *deviceTokenRepository) Unregister(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.DeviceToken{}).Error
}

func (r *deviceTokenRepository) ListByUser(userID string) ([]string, error) {
	var tokens []string
	err := r.db.Model(&authdomain.DeviceToken{}).Where("user_id = ?", userID).Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
