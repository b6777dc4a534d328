package models

import "time"

// Room is an exam hall laid out as rows of identical benches.
type Room struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	NumBenches    int       `db:"num_benches" json:"num_benches"`
	SeatsPerBench int       `db:"seats_per_bench" json:"seats_per_bench"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Capacity is the number of seats in the room.
func (r Room) Capacity() int {
	if r.NumBenches <= 0 || r.SeatsPerBench <= 0 {
		return 0
	}
	return r.NumBenches * r.SeatsPerBench
}

// RoomFilter encapsulates allowed search parameters for listing rooms.
type RoomFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
