// ABOUTME: Per-address token buckets guarding the login endpoint.
// ABOUTME: Size-bounded with LRU eviction and TTL sweep so the map never grows unbounded.

package chatapi

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// loginBurst is how many immediate attempts one address gets before
	// refill kicks in.
	loginBurst = 5
	// loginRefill restores one attempt per second.
	loginRefill = rate.Limit(1)

	throttleTTL      = 15 * time.Minute
	throttleMaxAddrs = 4096
	sweepInterval    = time.Minute
)

// throttleEntry pairs a limiter with the bookkeeping eviction needs.
type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	element  *list.Element
}

// loginThrottle hands out one token bucket per client address. Uses a
// doubly-linked list in last-use order for O(1) eviction of the oldest
// address when the map is full; a background sweeper drops idle entries.
type loginThrottle struct {
	mu     sync.Mutex
	limits map[string]*throttleEntry
	order  *list.List // addresses in last-use order (oldest at front)
	done   chan struct{}
	closed bool
}

// newLoginThrottle starts a throttle and its background sweeper.
func newLoginThrottle() *loginThrottle {
	t := &loginThrottle{
		limits: make(map[string]*throttleEntry),
		order:  list.New(),
		done:   make(chan struct{}),
	}
	go t.sweep()
	return t
}

// allow reports whether addr may attempt a login right now, consuming one
// token when it may.
func (t *loginThrottle) allow(addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.limits[addr]
	if !ok {
		if len(t.limits) >= throttleMaxAddrs {
			t.evictOldest()
		}
		entry = &throttleEntry{limiter: rate.NewLimiter(loginRefill, loginBurst)}
		entry.element = t.order.PushBack(addr)
		t.limits[addr] = entry
	} else {
		t.order.MoveToBack(entry.element)
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// evictOldest removes the least recently used address. Must be called with
// mu held.
func (t *loginThrottle) evictOldest() {
	front := t.order.Front()
	if front == nil {
		return
	}
	addr, _ := front.Value.(string)
	t.order.Remove(front)
	delete(t.limits, addr)
}

// sweep runs in a background goroutine, periodically removing idle entries.
func (t *loginThrottle) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.removeIdle()
		case <-t.done:
			return
		}
	}
}

// removeIdle drops every address idle past throttleTTL.
func (t *loginThrottle) removeIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for addr, entry := range t.limits {
		if now.Sub(entry.lastSeen) > throttleTTL {
			t.order.Remove(entry.element)
			delete(t.limits, addr)
		}
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (t *loginThrottle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		close(t.done)
		t.closed = true
	}
}
