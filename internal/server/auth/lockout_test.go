package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	p := NewLockoutPolicy()
	s := LockState{}

	for i := 1; i < DefaultMaxFailedAttempts; i++ {
		var locked bool
		s, locked = p.OnFailure(s, t0)
		require.False(t, locked, "attempt %d", i)
		require.Equal(t, i, s.FailedAttempts)
		require.Nil(t, s.LockedUntil)
	}

	s, locked := p.OnFailure(s, t0)
	require.True(t, locked)
	require.NotNil(t, s.LockedUntil)
	assert.Equal(t, t0.Add(DefaultLockDuration), *s.LockedUntil)
	assert.True(t, p.IsLocked(s, t0))
	assert.True(t, p.IsLocked(s, t0.Add(DefaultLockDuration-time.Second)))
	assert.False(t, p.IsLocked(s, t0.Add(DefaultLockDuration)))
}

func TestLockoutPolicy_FailureWhileLockedKeepsLock(t *testing.T) {
	p := NewLockoutPolicy(WithMaxAttempts(2), WithLockDuration(time.Second))
	s := LockState{}

	s, _ = p.OnFailure(s, t0)
	s, locked := p.OnFailure(s, t0)
	require.True(t, locked)
	until := *s.LockedUntil

	s, locked = p.OnFailure(s, t0.Add(500*time.Millisecond))
	assert.False(t, locked, "no second transition")
	assert.Equal(t, 3, s.FailedAttempts)
	assert.Equal(t, until, *s.LockedUntil, "lock must not be extended")
}

func TestLockoutPolicy_ExpiredLockStartsNewSeries(t *testing.T) {
	p := NewLockoutPolicy(WithMaxAttempts(2), WithLockDuration(time.Second))
	expired := t0.Add(-time.Minute)
	s := LockState{FailedAttempts: 7, LockedUntil: &expired}

	require.False(t, p.IsLocked(s, t0))

	s, locked := p.OnFailure(s, t0)
	assert.False(t, locked)
	assert.Equal(t, 1, s.FailedAttempts)
	assert.Nil(t, s.LockedUntil)

	s, locked = p.OnFailure(s, t0)
	assert.True(t, locked)
	assert.Equal(t, t0.Add(time.Second), *s.LockedUntil)
}

func TestLockoutPolicy_OnSuccessResets(t *testing.T) {
	p := NewLockoutPolicy()
	until := t0.Add(time.Hour)

	s := p.OnSuccess(LockState{FailedAttempts: 4, LockedUntil: &until})
	assert.Equal(t, LockState{}, s)
}

func TestNewLockoutPolicy_Options(t *testing.T) {
	p := NewLockoutPolicy(WithMaxAttempts(3), WithLockDuration(time.Minute))
	assert.Equal(t, 3, p.MaxAttempts())
	assert.Equal(t, time.Minute, p.LockDuration())

	d := NewLockoutPolicy(WithMaxAttempts(0), WithLockDuration(-1))
	assert.Equal(t, DefaultMaxFailedAttempts, d.MaxAttempts())
	assert.Equal(t, DefaultLockDuration, d.LockDuration())
}
