package auth

import "time"

const (
	DefaultMaxFailedAttempts = 5
	DefaultLockDuration      = 30 * time.Minute
)

// LockState is the slice of a user row the lockout policy reads and writes.
type LockState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LockoutPolicy decides how failed and successful logins change a LockState.
// It holds configuration only; the user row is the state.
type LockoutPolicy struct {
	maxAttempts  int
	lockDuration time.Duration
}

type LockoutOption func(*LockoutPolicy)

func WithMaxAttempts(n int) LockoutOption {
	return func(p *LockoutPolicy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithLockDuration(d time.Duration) LockoutOption {
	return func(p *LockoutPolicy) {
		if d > 0 {
			p.lockDuration = d
		}
	}
}

func NewLockoutPolicy(opts ...LockoutOption) *LockoutPolicy {
	p := &LockoutPolicy{
		maxAttempts:  DefaultMaxFailedAttempts,
		lockDuration: DefaultLockDuration,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *LockoutPolicy) MaxAttempts() int { return p.maxAttempts }

func (p *LockoutPolicy) LockDuration() time.Duration { return p.lockDuration }

// IsLocked reports whether s rejects logins at now.
func (p *LockoutPolicy) IsLocked(s LockState, now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// OnFailure records one failed attempt. The second result is true only for
// the attempt that moves the account from Active to Locked.
func (p *LockoutPolicy) OnFailure(s LockState, now time.Time) (LockState, bool) {
	if p.IsLocked(s, now) {
		s.FailedAttempts++
		return s, false
	}

	// an expired lock starts a new series
	if s.LockedUntil != nil {
		s.FailedAttempts = 0
		s.LockedUntil = nil
	}

	s.FailedAttempts++
	if s.FailedAttempts >= p.maxAttempts {
		until := now.Add(p.lockDuration)
		s.LockedUntil = &until
		return s, true
	}
	return s, false
}

// OnSuccess resets the counter and clears any lock.
func (p *LockoutPolicy) OnSuccess(LockState) LockState {
	return LockState{}
}
