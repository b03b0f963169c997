package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository handles database operations for User
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by UUID
func (r *UserRepository) FindByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs finds multiple users at once
func (r *UserRepository) FindByIDs(ids []uuid.UUID) ([]model.User, error) {
	var users []model.User
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// FindByEmail finds a user by email
func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsers searches users by name or email (partial match)
func (r *UserRepository) SearchUsers(query string, excludeUserID uuid.UUID, limit int) ([]model.User, error) {
	var users []model.User
	err := r.db.
		Where("(name LIKE ? OR email LIKE ?) AND id != ?", "%"+query+"%", "%"+query+"%", excludeUserID).
		Limit(limit).
		Find(&users).Error
	return users, err
}

// UpdateOnlineStatus sets a user's online flag and last-seen timestamp
func (r *UserRepository) UpdateOnlineStatus(userID uuid.UUID, online bool) error {
	updates := map[string]interface{}{"is_online": online}
	if !online {
		now := time.Now()
		updates["last_seen"] = &now
	}
	return r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// UpdatePreferences applies a partial update of push/DND preferences
func (r *UserRepository) UpdatePreferences(userID uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// RegisterDevice upserts an FCM device token for a user
func (r *UserRepository) RegisterDevice(device *model.UserDevice) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fcm_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_type", "last_active_at"}),
	}).Create(device).Error
}

// GetUserDevices returns all registered devices for a user
func (r *UserRepository) GetUserDevices(userID uuid.UUID) ([]model.UserDevice, error) {
	var devices []model.UserDevice
	err := r.db.Where("user_id = ?", userID).Find(&devices).Error
	return devices, err
}
