// Package lockout tracks failed login attempts per identity and refuses
// further attempts for a fixed window once a threshold is reached.
//
// Per identity the state machine is
//
//	CLEAR -(failure)-> COUNTING -(failure, count==threshold)-> LOCKED -(window elapses)-> CLEAR
//
// Expiry is lazy: IsLocked clears stale entries, no background sweep runs.
package lockout

import (
	"context"
	"time"
)

const (
	DefaultThreshold = 10
	DefaultWindow    = time.Hour
)

// Tracker applies the lockout policy on top of a Store.
type Tracker struct {
	store     Store
	threshold int
	window    time.Duration
	now       func() time.Time
}

type Option func(*Tracker)

func WithThreshold(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.threshold = n
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Threshold returns the number of failures that triggers a lock.
func (t *Tracker) Threshold() int { return t.threshold }

// Window returns the lock duration.
func (t *Tracker) Window() time.Duration { return t.window }

// RecordFailure counts a failed attempt and reports whether the identity is
// now locked.
func (t *Tracker) RecordFailure(ctx context.Context, key string) (bool, error) {
	now := t.now()
	e, _, err := t.store.Update(ctx, key, func(cur Entry, ok bool) (Entry, bool) {
		if ok && cur.LockedUntil != nil && !now.Before(*cur.LockedUntil) {
			cur = Entry{}
		}
		cur.FailedCount++
		if cur.LockedUntil == nil && cur.FailedCount >= t.threshold {
			until := now.Add(t.window)
			cur.LockedUntil = &until
		}
		return cur, true
	})
	if err != nil {
		return false, err
	}
	return e.LockedUntil != nil, nil
}

// RecordSuccess clears the entry unconditionally.
func (t *Tracker) RecordSuccess(ctx context.Context, key string) error {
	return t.store.Delete(ctx, key)
}

// IsLocked reports whether key is inside its lockout window. An entry whose
// window has passed is removed as a side effect.
func (t *Tracker) IsLocked(ctx context.Context, key string) (bool, error) {
	now := t.now()
	var locked bool
	// fn may run more than once when a backend retries its transaction.
	_, _, err := t.store.Update(ctx, key, func(cur Entry, ok bool) (Entry, bool) {
		locked = false
		if !ok {
			return cur, false
		}
		if cur.LockedUntil == nil {
			return cur, true
		}
		if !now.Before(*cur.LockedUntil) {
			return cur, false
		}
		locked = true
		return cur, true
	})
	if err != nil {
		return false, err
	}
	return locked, nil
}
