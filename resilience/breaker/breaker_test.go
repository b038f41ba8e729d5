package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_TripsAfterVolumeAndFailureThreshold(t *testing.T) {
	cb := New("test", Options{FailureThreshold: 0.5, VolumeThreshold: 4, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, errBoom })
		require.Error(t, err)
	}

	assert.Equal(t, Open, cb.State())

	_, err := cb.Execute(func() (interface{}, error) { return "should not run", nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestCircuitBreaker_StaysClosedBelowVolumeThreshold(t *testing.T) {
	cb := New("test", Options{FailureThreshold: 0.5, VolumeThreshold: 10, OpenTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errBoom })
	}

	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenTrialClosesOnSuccess(t *testing.T) {
	cb := New("test", Options{FailureThreshold: 0.5, VolumeThreshold: 1, OpenTimeout: 10 * time.Millisecond})

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errBoom })
	require.Equal(t, Open, cb.State())

	time.Sleep(15 * time.Millisecond)

	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenTrialReopensOnFailure(t *testing.T) {
	cb := New("test", Options{FailureThreshold: 0.5, VolumeThreshold: 1, OpenTimeout: 10 * time.Millisecond})

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errBoom })
	require.Equal(t, Open, cb.State())

	time.Sleep(15 * time.Millisecond)

	_, err := cb.Execute(func() (interface{}, error) { return nil, errBoom })
	assert.Error(t, err)
	assert.Equal(t, Open, cb.State())
}

func TestCircuitBreaker_DisabledAlwaysCallsThrough(t *testing.T) {
	cb := New("test", Options{Disabled: true, VolumeThreshold: 1})

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errBoom })
	}
	assert.Equal(t, Closed, cb.State())

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.NoError(t, err)
}
