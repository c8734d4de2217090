package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps all window counters in process memory. This is the
// default store. Under horizontal scaling each process enforces its own
// limit, so the true aggregate is limit x process count - an accepted
// approximation; RedisLimiter is the shared-store substitute.
type MemoryLimiter struct {
	mu   sync.Mutex
	keys map[string]*keyCounters
}

// keyCounters owns every counter for one key. Its mutex serializes
// check-then-commit for the key, closing the race where two concurrent
// requests both pass the check before either records.
type keyCounters struct {
	mu        sync.Mutex
	counters  map[string]*WindowCounter
	lastSeen  time.Time
	maxWindow time.Duration
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		keys: make(map[string]*keyCounters),
	}
}

func (m *MemoryLimiter) CheckAndRecord(ctx context.Context, key Key, rules []Rule, now time.Time) (*Decision, error) {
	sorted := sortRules(rules)
	kc := m.entry(key)

	kc.mu.Lock()
	defer kc.mu.Unlock()

	kc.lastSeen = now

	for _, rule := range sorted {
		counter := kc.counter(rule)

		current := counter.Count(now)
		if current >= rule.MaxRequests {
			return &Decision{
				Admitted:   false,
				Rule:       rule.Name,
				Limit:      rule.MaxRequests,
				Current:    current,
				Window:     rule.Window,
				RetryAfter: counter.RetryAfter(now),
			}, nil
		}
	}

	// All rules passed - commit on every counter. Nothing was recorded
	// during the check pass, so a rejection above cannot leave a partial
	// record behind.
	for _, rule := range sorted {
		kc.counter(rule).Record(now)
	}

	return &Decision{Admitted: true}, nil
}

// Sweep drops keys that have been idle for longer than their largest
// rule window. Without it the key map grows without bound.
func (m *MemoryLimiter) Sweep(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, kc := range m.keys {
		kc.mu.Lock()
		idle := now.Sub(kc.lastSeen) > kc.maxWindow
		kc.mu.Unlock()

		if idle {
			delete(m.keys, id)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *MemoryLimiter) entry(key Key) *keyCounters {
	m.mu.Lock()
	defer m.mu.Unlock()

	kc, exists := m.keys[key.String()]
	if !exists {
		kc = &keyCounters{counters: make(map[string]*WindowCounter)}
		m.keys[key.String()] = kc
	}

	return kc
}

// counter lazily creates the window counter for a rule. Caller must hold
// the key mutex.
func (kc *keyCounters) counter(rule Rule) *WindowCounter {
	c, exists := kc.counters[rule.Name]
	if !exists {
		c = NewWindowCounter(rule.Window)
		kc.counters[rule.Name] = c
	}

	if rule.Window > kc.maxWindow {
		kc.maxWindow = rule.Window
	}

	return c
}
