package repository

import authdomain "lexhub-backend/internal/auth/domain"

// UserRepository defines persistence for users and refresh tokens.
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByEmail(email string) (*authdomain.User, error)
	FindByID(id string) (*authdomain.User, error)
	Update(user *authdomain.User) error
	SaveRefreshToken(token *authdomain.RefreshToken) error
	FindRefreshToken(token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(token string) error
}

// DeviceTokenRepository defines persistence for FCM device tokens.
type DeviceTokenRepository interface {
	Register(token *authdomain.DeviceToken) error
	Unregister(token string) error
	ListByUser(userID string) ([]string, error)
}
