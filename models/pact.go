package models

import (
	"math"
	"strings"
	"time"
)

// Pact is a public commitment to a goal with a deadline. Check-ins hang off it.
type Pact struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	Title       string     `gorm:"size:100;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Deadline    time.Time  `gorm:"index;not null" json:"deadline"`
	Tags        string     `gorm:"size:512" json:"-"` // comma separated, each prefixed with '#'
	IsCompleted bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	User        User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	CheckIns    []CheckIn  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// TagList splits the stored tags.
func (p *Pact) TagList() []string {
	if p.Tags == "" {
		return []string{}
	}
	return strings.Split(p.Tags, ",")
}

// DaysLeft rounds the time until the deadline up to whole days. Zero or less means overdue.
func (p *Pact) DaysLeft(now time.Time) int {
	return int(math.Ceil(p.Deadline.Sub(now).Hours() / 24))
}

// PactStatus summarises a pact for display.
func (p *Pact) PactStatus(now time.Time) string {
	switch {
	case p.IsCompleted:
		return "completed"
	case p.DaysLeft(now) > 0:
		return "active"
	default:
		return "overdue"
	}
}
