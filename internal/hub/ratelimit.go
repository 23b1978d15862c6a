// ABOUTME: Sliding-window send limiter guarding conversations against rapid message floods.
// ABOUTME: Owned by a session's reader pump, so it needs no synchronization.

package hub

import "time"

const (
	// messageRateWindow/messageRateLimit implement a simple anti-spam window.
	messageRateWindow      = 10 * time.Second
	messageRateLimit       = 30
	messageHistoryCapacity = 64
)

// sendLimiter admits at most messageRateLimit sends per messageRateWindow.
// The zero value is ready to use.
type sendLimiter struct {
	history []time.Time
}

// allow compacts the window, reports whether a send at now fits the budget,
// and records it when admitted. Rejected sends consume no budget.
func (l *sendLimiter) allow(now time.Time) bool {
	windowStart := now.Add(-messageRateWindow)
	kept := l.history[:0]
	for _, ts := range l.history {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	l.history = kept

	if len(l.history) >= messageRateLimit {
		return false
	}

	l.history = append(l.history, now)
	if len(l.history) > messageHistoryCapacity {
		l.history = l.history[len(l.history)-messageHistoryCapacity:]
	}
	return true
}
