package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered user. Identity fields are read-only inputs to
// the sync engine; the notification preference fields drive push suppression.
type User struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name     string    `json:"name" gorm:"size:100;not null"`
	Email    string    `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Password string    `json:"-" gorm:"size:255"`
	Avatar   string    `json:"avatar" gorm:"size:500;default:''"`

	// Push notification preferences
	PushEnabled bool      `json:"push_enabled" gorm:"default:true"`
	PushTypes   PushTypes `json:"push_types" gorm:"type:text;serializer:json"`

	// Do-Not-Disturb window ("HH:MM" local time). Start after end means the
	// window wraps past midnight.
	DNDEnabled bool   `json:"dnd_enabled" gorm:"default:false"`
	DNDStart   string `json:"dnd_start" gorm:"size:5;default:''"`
	DNDEnd     string `json:"dnd_end" gorm:"size:5;default:''"`

	IsOnline  bool           `json:"is_online" gorm:"default:false"`
	LastSeen  *time.Time     `json:"last_seen"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns an ID when the database has no uuid default
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// PushTypes maps a notification-type key to whether the user wants it.
// A key missing from the map means enabled.
type PushTypes map[string]bool

// Wants reports whether the user accepts notifications of the given type
func (p PushTypes) Wants(notificationType string) bool {
	if p == nil {
		return true
	}
	enabled, ok := p[notificationType]
	if !ok {
		return true
	}
	return enabled
}

// UserResponse is the safe version of User for API responses
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Avatar      string     `json:"avatar"`
	PushEnabled bool       `json:"push_enabled"`
	PushTypes   PushTypes  `json:"push_types"`
	DNDEnabled  bool       `json:"dnd_enabled"`
	DNDStart    string     `json:"dnd_start"`
	DNDEnd      string     `json:"dnd_end"`
	IsOnline    bool       `json:"is_online"`
	LastSeen    *time.Time `json:"last_seen"`
}

// ToResponse converts User to safe UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Avatar:      u.Avatar,
		PushEnabled: u.PushEnabled,
		PushTypes:   u.PushTypes,
		DNDEnabled:  u.DNDEnabled,
		DNDStart:    u.DNDStart,
		DNDEnd:      u.DNDEnd,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
	}
}

// UserDevice represents a user's device for push notifications
type UserDevice struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"not null;index"`
	FCMToken     string    `json:"fcm_token" gorm:"not null;uniqueIndex:idx_user_token"`
	DeviceType   string    `json:"device_type" gorm:"size:20;default:'unknown'"` // android, ios, web
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (d *UserDevice) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
