// Package lifecycle turns foreground/background notifications of the host into reconnect requests.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/moyoez/pairdrop-go/tool"
)

type Visibility int

const (
	Foreground Visibility = iota
	Background
)

func (v Visibility) String() string {
	if v == Background {
		return "background"
	}
	return "foreground"
}

// Source delivers visibility changes. The returned func unsubscribes and must be called once.
type Source interface {
	Subscribe() (<-chan Visibility, func())
}

// Target is told when the app came back to the foreground. session.Client implements it.
type Target interface {
	Foreground()
}

type Watcher struct {
	target  Target
	limiter *rate.Limiter

	mu   sync.Mutex
	last Visibility
}

// NewWatcher drops foreground transitions closer together than minInterval. Zero keeps them all.
func NewWatcher(target Target, minInterval time.Duration) *Watcher {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Watcher{
		target:  target,
		limiter: rate.NewLimiter(limit, 1),
		last:    Foreground,
	}
}

// Watch consumes src until ctx ends or the source closes its channel, then unsubscribes.
func (w *Watcher) Watch(ctx context.Context, src Source) {
	ch, unsubscribe := src.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			w.Observe(v)
		}
	}
}

// Observe records v and fires the target on a background to foreground edge.
func (w *Watcher) Observe(v Visibility) {
	w.mu.Lock()
	prev := w.last
	w.last = v
	w.mu.Unlock()

	tool.DefaultLogger.Debugf("[Lifecycle] %s -> %s", prev, v)
	if prev != Background || v != Foreground {
		return
	}
	if !w.limiter.Allow() {
		tool.DefaultLogger.Debugf("[Lifecycle] Foreground transition dropped by rate limit")
		return
	}
	w.target.Foreground()
}

// ManualSource is fed by hand, e.g. from the control API.
type ManualSource struct {
	mu   sync.Mutex
	subs map[chan Visibility]struct{}
}

func NewManualSource() *ManualSource {
	return &ManualSource{subs: make(map[chan Visibility]struct{})}
}

func (s *ManualSource) Subscribe() (<-chan Visibility, func()) {
	ch := make(chan Visibility, 4)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

// Set publishes a change to every subscriber. Slow subscribers miss updates instead of blocking.
func (s *ManualSource) Set(visible bool) {
	v := Background
	if visible {
		v = Foreground
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- v:
		default:
			tool.DefaultLogger.Warnf("[Lifecycle] Subscriber busy, dropped %s", v)
		}
	}
}
