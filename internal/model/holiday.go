package model

import "time"

// Holiday is an organization-wide blackout day.
type Holiday struct {
	Date      time.Time `json:"date"` // только дата, время игнорируется
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}
