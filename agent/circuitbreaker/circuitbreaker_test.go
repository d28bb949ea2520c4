// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAfterThresholdAndRecovers(t *testing.T) {
	// Mirrors spec scenario S2 (threshold=3), with the reset timeout
	// shortened to 50ms.
	b := New(Config{FailureThreshold: 3, ResetTimeout: 50 * time.Millisecond})

	require.True(t, b.Allow("instance-x"))
	b.RecordFailure("instance-x")
	b.RecordFailure("instance-x")
	assert.Equal(t, Closed, b.Get("instance-x").State)
	b.RecordFailure("instance-x")

	assert.Equal(t, Open, b.Get("instance-x").State)
	assert.False(t, b.Allow("instance-x"), "breaker must reject while open and before reset timeout")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, b.Allow("instance-x"), "breaker must allow a probe once reset timeout elapses")
	assert.Equal(t, HalfOpen, b.Get("instance-x").State)

	b.RecordSuccess("instance-x")
	snap := b.Get("instance-x")
	assert.Equal(t, Closed, snap.State)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 2, ResetTimeout: 10 * time.Millisecond})
	b.RecordFailure("k")
	b.RecordFailure("k")
	require.Equal(t, Open, b.Get("k").State)

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow("k"))
	require.Equal(t, HalfOpen, b.Get("k").State)

	b.RecordFailure("k")
	assert.Equal(t, Open, b.Get("k").State, "a failed probe must reopen the breaker")
}

func TestBreakerSuccessDecrementsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 5, ResetTimeout: time.Second})
	b.RecordFailure("k")
	b.RecordFailure("k")
	b.RecordSuccess("k")
	assert.Equal(t, 1, b.Get("k").ConsecutiveFailures)
}

func TestBreakerUnknownKeyDefaultsClosed(t *testing.T) {
	b := New(DefaultConfig())
	assert.Equal(t, Closed, b.Get("never-seen").State)
	assert.True(t, b.Allow("never-seen"))
}

func TestBreakerReset(t *testing.T) {
	b := New(Config{FailureThreshold: 1, ResetTimeout: time.Hour})
	b.RecordFailure("k")
	require.Equal(t, Open, b.Get("k").State)
	b.Reset("k")
	assert.Equal(t, Closed, b.Get("k").State)
}
