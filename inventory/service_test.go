package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideReservation_ApprovesWithinBudget(t *testing.T) {
	assert.True(t, decideReservation([]orderItem{{Quantity: 2}, {Quantity: 8}}))
	assert.True(t, decideReservation([]orderItem{{Quantity: 1}}))
	assert.True(t, decideReservation([]orderItem{{Quantity: 10}}))
}

func TestDecideReservation_RejectsOverBudget(t *testing.T) {
	assert.False(t, decideReservation([]orderItem{{Quantity: 6}, {Quantity: 5}}))
	assert.False(t, decideReservation([]orderItem{{Quantity: 11}}))
}

func TestDecideReservation_RejectsZeroOrNegative(t *testing.T) {
	assert.False(t, decideReservation(nil))
	assert.False(t, decideReservation([]orderItem{{Quantity: 0}}))
}
