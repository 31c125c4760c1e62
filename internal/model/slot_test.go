package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotCode(t *testing.T) {
	cases := []struct {
		blockCode string
		rowNo     uint32
		position  uint32
		want      string
	}{
		{"EAST", 1, 3, "EAST-01-003"},
		{"EAST", 1, 1, "EAST-01-001"},
		{"W", 12, 120, "W-12-120"},
		{"NORTH", 99, 999, "NORTH-99-999"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SlotCode(c.blockCode, c.rowNo, c.position))
	}
}

func TestSlotCodeDeterministic(t *testing.T) {
	// Same inputs must always produce the same code.
	assert.Equal(t, SlotCode("EAST", 2, 5), SlotCode("EAST", 2, 5))
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(ReservationReserved))
	assert.True(t, CanCancel(ReservationActive))
	assert.False(t, CanCancel(ReservationCancelled))
	assert.False(t, CanCancel(ReservationExpired))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(ReservationReserved))
	assert.False(t, IsTerminal(ReservationActive))
	assert.True(t, IsTerminal(ReservationCancelled))
	assert.True(t, IsTerminal(ReservationExpired))
}
