package sources

import "time"

// FailureCache remembers the last failure time per service for the lifetime
// of one process. It is owned by the Resolver and not shared; runs are
// single-threaded, so no locking.
type FailureCache struct {
	lastFailure map[string]time.Time
}

func NewFailureCache() *FailureCache {
	return &FailureCache{lastFailure: map[string]time.Time{}}
}

func (c *FailureCache) MarkFailed(name string, t time.Time) {
	c.lastFailure[name] = t
}

// InCooldown reports whether name failed within window before now.
func (c *FailureCache) InCooldown(name string, now time.Time, window time.Duration) bool {
	last, ok := c.lastFailure[name]
	if !ok {
		return false
	}

	return now.Sub(last) < window
}

// LeastRecent returns the name among names whose last failure is oldest.
// Names with no recorded failure win outright.
func (c *FailureCache) LeastRecent(names []string) string {
	if len(names) == 0 {
		return ""
	}

	best := names[0]
	bestTime, ok := c.lastFailure[best]
	if !ok {
		return best
	}

	for _, name := range names[1:] {
		t, ok := c.lastFailure[name]
		if !ok {
			return name
		}
		if t.Before(bestTime) {
			best, bestTime = name, t
		}
	}

	return best
}
