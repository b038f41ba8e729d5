package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransition_PendingToConfirmed(t *testing.T) {
	o := &Order{Status: StatusPending}
	changed := o.transition(StatusConfirmed, time.Unix(100, 0))
	assert.True(t, changed)
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestOrderTransition_PendingToRejected(t *testing.T) {
	o := &Order{Status: StatusPending}
	changed := o.transition(StatusRejected, time.Unix(100, 0))
	assert.True(t, changed)
	assert.Equal(t, StatusRejected, o.Status)
}

func TestOrderTransition_TerminalStatesDoNotTransition(t *testing.T) {
	for _, terminal := range []Status{StatusRejected, StatusCancelled} {
		o := &Order{Status: terminal, UpdatedAt: time.Unix(1, 0)}
		changed := o.transition(StatusConfirmed, time.Unix(100, 0))
		assert.False(t, changed)
		assert.Equal(t, terminal, o.Status)
		assert.Equal(t, time.Unix(1, 0), o.UpdatedAt)
	}
}

func TestOrderTransition_ConfirmedToCancelled(t *testing.T) {
	o := &Order{Status: StatusConfirmed}
	changed := o.transition(StatusCancelled, time.Unix(100, 0))
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, o.Status)
}
