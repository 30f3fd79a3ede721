package models

import "time"

// CheckInStatus tags a progress update.
type CheckInStatus string

const (
	StatusOnTrack   CheckInStatus = "on_track"
	StatusMilestone CheckInStatus = "milestone"
	StatusBlocked   CheckInStatus = "blocked"
)

// Valid reports whether s is one of the known statuses.
func (s CheckInStatus) Valid() bool {
	switch s {
	case StatusOnTrack, StatusMilestone, StatusBlocked:
		return true
	}
	return false
}

// CheckIn is a progress update on a pact. Immutable once posted.
type CheckIn struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	PactID    uint          `gorm:"index;not null" json:"pact_id"`
	UserID    uint          `gorm:"index;not null" json:"user_id"`
	Content   string        `gorm:"type:text;not null" json:"content"`
	Status    CheckInStatus `gorm:"size:16;not null;default:on_track" json:"status"`
	ImageURL  string        `gorm:"size:512" json:"image_url,omitempty"`
	CreatedAt time.Time     `gorm:"index" json:"created_at"`
	User      User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Pact      Pact          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Kudos     []Kudo        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
