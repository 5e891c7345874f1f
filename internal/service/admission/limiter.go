package admission

import (
	"sync"
	"time"
)

// Limiter is a per-identity sliding-window rate limiter. State is memory only.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[int64]*rateWindow
}

type rateWindow struct {
	mu   sync.Mutex
	hits []time.Time
	dead bool
}

type LimiterOption func(*Limiter)

func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(limit int, window time.Duration, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[int64]*rateWindow),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Limit() int { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

// Admit records a hit and returns true unless identity already has limit hits inside the window.
// A rejected call records nothing.
func (l *Limiter) Admit(identity int64) bool {
	for {
		w := l.windowFor(identity)

		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}

		now := l.now()
		w.prune(now.Add(-l.window))

		if len(w.hits) >= l.limit {
			w.mu.Unlock()
			return false
		}

		w.hits = append(w.hits, now)
		w.mu.Unlock()
		return true
	}
}

// Remaining reports how many hits identity may still make in the current window.
func (l *Limiter) Remaining(identity int64) int {
	l.mu.Lock()
	w, ok := l.windows[identity]
	l.mu.Unlock()
	if !ok {
		return l.limit
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(l.now().Add(-l.window))
	return max(l.limit-len(w.hits), 0)
}

// Sweep drops windows with no hits left inside the window and returns how many were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	dropped := 0
	for id, w := range l.windows {
		w.mu.Lock()
		w.prune(cutoff)
		if len(w.hits) == 0 {
			w.dead = true
			delete(l.windows, id)
			dropped++
		}
		w.mu.Unlock()
	}
	return dropped
}

func (l *Limiter) windowFor(identity int64) *rateWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok {
		w = &rateWindow{}
		l.windows[identity] = w
	}
	return w
}

// prune drops hits older than cutoff. Hits are kept in arrival order.
func (w *rateWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && w.hits[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}
