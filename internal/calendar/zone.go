package calendar

import (
	"context"
	"sync"
	"time"
)

// Zone resolves the hospital time zone. It re-reads the configured zone at
// most once per refresh interval and keeps the last good value when a
// read fails.
type Zone struct {
	load    func(ctx context.Context) (*time.Location, error)
	refresh time.Duration
	now     func() time.Time

	mu       sync.Mutex
	loc      *time.Location
	loadedAt time.Time
}

// NewZone returns a zone backed by load.
func NewZone(load func(ctx context.Context) (*time.Location, error), refresh time.Duration) *Zone {
	return &Zone{load: load, refresh: refresh, now: time.Now, loc: time.UTC}
}

// Fixed returns a zone that never changes.
func Fixed(loc *time.Location) *Zone {
	if loc == nil {
		loc = time.UTC
	}
	return &Zone{loc: loc}
}

// Location returns the current zone, reloading it when it is stale.
func (z *Zone) Location(ctx context.Context) *time.Location {
	if z == nil {
		return time.UTC
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.load == nil {
		return z.loc
	}
	if !z.loadedAt.IsZero() && z.now().Sub(z.loadedAt) < z.refresh {
		return z.loc
	}
	if loc, err := z.load(ctx); err == nil && loc != nil {
		z.loc = loc
		z.loadedAt = z.now()
	}
	return z.loc
}

// Invalidate forces the next Location call to reload.
func (z *Zone) Invalidate() {
	z.mu.Lock()
	z.loadedAt = time.Time{}
	z.mu.Unlock()
}
