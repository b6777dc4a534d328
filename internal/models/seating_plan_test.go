package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeatIndex(t *testing.T) {
	assert.Equal(t, 1, SeatIndex("left"))
	assert.Equal(t, 2, SeatIndex("Right"))
	assert.Equal(t, 10, SeatIndex("seat_10"))
	assert.Equal(t, 0, SeatIndex("aisle"))
}

func TestSortSeatsOrdersSeatNumbersNumerically(t *testing.T) {
	seats := []SeatAssignment{
		{RoomName: "Room 2", BenchNumber: 1, Position: "seat_1", Roll: "r2"},
		{RoomName: "Room 1", BenchNumber: 1, Position: "seat_10", Roll: "s10"},
		{RoomName: "Room 1", BenchNumber: 1, Position: "seat_2", Roll: "s2"},
		{RoomName: "Room 1", BenchNumber: 2, Position: "seat_1", Roll: "b2"},
		{RoomName: "Room 1", BenchNumber: 1, Position: "seat_9", Roll: "s9"},
	}

	SortSeats(seats)

	rolls := make([]string, 0, len(seats))
	for _, seat := range seats {
		rolls = append(rolls, seat.Roll)
	}
	assert.Equal(t, []string{"s2", "s9", "s10", "b2", "r2"}, rolls)
}
