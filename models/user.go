package models

import (
	"time"

	"gorm.io/gorm"
)

// User is created on first successful identity-provider login and never deleted by the app.
// Username is optional; NULL usernames do not collide on the unique index.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   *string   `gorm:"size:64;uniqueIndex" json:"username"`
	Name       string    `gorm:"size:128" json:"name"`
	Email      string    `gorm:"size:255" json:"email,omitempty"`
	Image      string    `gorm:"size:512" json:"image"`
	Provider   string    `gorm:"size:32;uniqueIndex:idx_user_provider" json:"-"`
	ProviderID string    `gorm:"size:255;uniqueIndex:idx_user_provider" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Pacts      []Pact    `json:"-"`
}

// DisplayName prefers the profile name, then the username.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != nil {
		return *u.Username
	}
	return ""
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
