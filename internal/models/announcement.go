package models

import (
	"time"
)

// Audience selects who sees an announcement.
type Audience string

const (
	AudienceAll     Audience = "all"
	AudienceSellers Audience = "sellers"
	AudienceBuyers  Audience = "buyers"
)

// Announcement is a platform notice shown on the dashboard.
type Announcement struct {
	Base      `bson:",inline"`
	Audience  Audience  `bson:"audience" json:"audience"`
	Title     string    `bson:"title" json:"title"`
	Text      string    `bson:"text" json:"text"`
	StartsAt  time.Time `bson:"starts_at" json:"starts_at"`
	EndsAt    time.Time `bson:"ends_at" json:"ends_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// VisibleAt reports whether the announcement's window contains now.
func (a *Announcement) VisibleAt(now time.Time) bool {
	return !now.Before(a.StartsAt) && !now.After(a.EndsAt)
}
