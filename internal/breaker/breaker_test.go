package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errBoom = errors.New("boom")

func failing() (any, error) { return nil, errBoom }
func succeeding() (any, error) { return "ok", nil }

func TestBreaker_OpensExactlyAtThreshold(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := New("test", Config{FailureThreshold: 3, RecoveryTimeout: time.Minute}, logger, nil)

	// Failures below the threshold leave the breaker closed and pass the
	// detector's own error through.
	for i := 0; i < 2; i++ {
		_, err := b.Execute(failing)
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, StateClosed, b.State())
	}

	// The third consecutive failure trips it.
	_, err := b.Execute(failing)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, b.State())

	// While open, calls are rejected immediately with ErrOpenCircuit.
	_, err = b.Execute(succeeding)
	require.ErrorIs(t, err, ErrOpenCircuit)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := New("test", Config{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond}, logger, nil)

	_, err := b.Execute(failing)
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(60 * time.Millisecond)

	// One successful trial call closes the breaker and resets the counters.
	result, err := b.Execute(succeeding)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Counts().ConsecutiveFailures)
}

func TestBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := New("test", Config{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond}, logger, nil)

	_, err := b.Execute(failing)
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(60 * time.Millisecond)

	_, err = b.Execute(failing)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, b.State())

	// The recovery timer restarted; the breaker still rejects.
	_, err = b.Execute(succeeding)
	require.ErrorIs(t, err, ErrOpenCircuit)
}

func TestBreaker_TransitionsObservable(t *testing.T) {
	logger := zaptest.NewLogger(t)

	var mu sync.Mutex
	var transitions [][2]State
	b := New("test", Config{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond}, logger,
		func(from, to State) {
			mu.Lock()
			transitions = append(transitions, [2]State{from, to})
			mu.Unlock()
		})

	_, _ = b.Execute(failing)
	time.Sleep(60 * time.Millisecond)
	_, err := b.Execute(succeeding)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 3)
	assert.Equal(t, [2]State{StateClosed, StateOpen}, transitions[0])
	assert.Equal(t, [2]State{StateOpen, StateHalfOpen}, transitions[1])
	assert.Equal(t, [2]State{StateHalfOpen, StateClosed}, transitions[2])
}

func TestBreaker_DefaultsApplied(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := New("test", Config{}, logger, nil)

	for i := 0; i < defaultFailureThreshold; i++ {
		_, err := b.Execute(failing)
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, b.State())
}
