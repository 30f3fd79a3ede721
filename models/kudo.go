package models

import "time"

// Kudo represents a user's kudo on a check-in.
// The combination of UserID and CheckInID must be unique. Rows are hard deleted
// so the unique index always reflects current state.
type Kudo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_kudo_user_checkin" json:"user_id"`
	CheckInID uint      `gorm:"not null;uniqueIndex:idx_kudo_user_checkin;index" json:"check_in_id"`
	CreatedAt time.Time `json:"created_at"`

	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CheckIn CheckIn `gorm:"foreignKey:CheckInID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
