package models

import "time"

// Student is an examinee sitting a paper in the current session.
type Student struct {
	ID            string    `db:"id" json:"id"`
	Roll          string    `db:"roll" json:"roll"`
	Name          string    `db:"name" json:"name"`
	Subject       string    `db:"subject" json:"subject"`
	PreferredRoom *string   `db:"preferred_room" json:"preferred_room,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Subject   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
