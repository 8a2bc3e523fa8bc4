package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"ArticleDesk/internal/ports"
)

// DefaultMirrorRetry is the minimum gap between two attach attempts.
const DefaultMirrorRetry = time.Minute

// MirrorDialer connects to the remote mirror. It is called again after a
// failed attempt, so it must be safe to repeat.
type MirrorDialer func(ctx context.Context) (ports.Mirror, error)

// MirrorLink attaches a remote mirror to the store once the remote is
// reachable. A failed attempt is retried by a later Ensure call, at most
// once per retry period.
type MirrorLink struct {
	store *Store
	dial  MirrorDialer
	retry time.Duration

	mu       sync.Mutex
	attached bool
	lastTry  time.Time
}

// NewMirrorLink wires dial to s. A non-positive retry uses DefaultMirrorRetry.
func NewMirrorLink(s *Store, dial MirrorDialer, retry time.Duration) *MirrorLink {
	if retry <= 0 {
		retry = DefaultMirrorRetry
	}
	return &MirrorLink{store: s, dial: dial, retry: retry}
}

// Ensure attaches the mirror unless it already is or the last attempt was
// too recent. It returns the error of an attempt made by this call.
func (l *MirrorLink) Ensure(ctx context.Context) error {
	if l == nil || l.dial == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.attached {
		return nil
	}
	now := l.store.now()
	if !l.lastTry.IsZero() && now.Sub(l.lastTry) < l.retry {
		return nil
	}
	l.lastTry = now

	mirror, err := l.dial(ctx)
	if err != nil {
		return err
	}
	if mirror == nil {
		return errors.New("mirror dialer returned no mirror")
	}
	if err := l.store.Attach(ctx, mirror); err != nil {
		return err
	}
	l.attached = true
	return nil
}

// Attached reports whether the mirror is live.
func (l *MirrorLink) Attached() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attached
}
