package repository

import (
	"errors"
	"time"

	conndomain "lexhub-backend/internal/connection/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// connectionRepository implements ConnectionRepository backed by gorm.
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new instance of connectionRepository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{
		db: db,
	}
}

func (r *connectionRepository) Create(conn *conndomain.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = time.Now()
	return r.db.Create(conn).Error
}

func (r *connectionRepository) FindByID(id string) (*conndomain.Connection, error) {
	var conn conndomain.Connection
	err := r.db.Where("id = ?", id).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindByUserAndID(userID, id string) (*conndomain.Connection, error) {
	var conn conndomain.Connection
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindByUserProviderAccount(userID string, provider conndomain.Provider, accountEmail string) (*conndomain.Connection, error) {
	var conn conndomain.Connection
	err := r.db.Where("user_id = ? AND provider = ? AND account_email = ?", userID, provider, accountEmail).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindByProviderAccount(provider conndomain.Provider, accountEmail string) (*conndomain.Connection, error) {
	var conn conndomain.Connection
	err := r.db.Where("provider = ? AND account_email = ?", provider, accountEmail).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) ListByUser(userID string) ([]*conndomain.Connection, error) {
	var conns []*conndomain.Connection
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *connectionRepository) Update(conn *conndomain.Connection) error {
	conn.UpdatedAt = time.Now()
	return r.db.Save(conn).Error
}

func (r *connectionRepository) UpdateTokens(id, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&conndomain.Connection{}).Where("id = ?", id).Updates(updates).Error
}

// TryBeginSync relies on a single conditional UPDATE so two concurrent sync
// triggers cannot both win.
func (r *connectionRepository) TryBeginSync(id string) (bool, error) {
	result := r.db.Model(&conndomain.Connection{}).
		Where("id = ? AND status <> ?", id, conndomain.ConnectionSyncing).
		Updates(map[string]interface{}{
			"status":     conndomain.ConnectionSyncing,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *connectionRepository) FinishSync(id string, status conndomain.ConnectionStatus, total, synced, failed int, lastSync time.Time) error {
	return r.db.Model(&conndomain.Connection{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"total_items":  total,
		"synced_items": synced,
		"failed_items": failed,
		"last_sync_at": lastSync,
		"updated_at":   time.Now(),
	}).Error
}

func (r *connectionRepository) Delete(id string) error {
	// SyncItems go with the connection via the cascade constraint
	return r.db.Select("SyncItems").Delete(&conndomain.Connection{ID: id}).Error
}
