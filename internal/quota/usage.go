package quota

import (
	"context"
	"sync"
	"time"
)

// Usage is the consumed portion of an organization's quota for one
// generation service.
type Usage struct {
	Monthly int
	Daily   int
}

// UsageStore persists usage counters per (organization, service).
// Implementations must reset counters at calendar boundaries (UTC day,
// UTC calendar month) and keep Increment atomic across both counters.
type UsageStore interface {
	Usage(ctx context.Context, orgID, service string, now time.Time) (Usage, error)
	Increment(ctx context.Context, orgID, service string, now time.Time) error
}

// MemoryUsage is the in-process usage store.
type MemoryUsage struct {
	mu      sync.Mutex
	records map[string]*usageRecord
}

type usageRecord struct {
	monthlyUsed int
	dailyUsed   int
	day         time.Time
	month       time.Time
}

func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{
		records: make(map[string]*usageRecord),
	}
}

func (m *MemoryUsage) Usage(ctx context.Context, orgID, service string, now time.Time) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(orgID, service, now)
	return Usage{Monthly: rec.monthlyUsed, Daily: rec.dailyUsed}, nil
}

func (m *MemoryUsage) Increment(ctx context.Context, orgID, service string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(orgID, service, now)
	rec.monthlyUsed++
	rec.dailyUsed++
	return nil
}

// record fetches the counters for a key, creating them on first use and
// resetting any counter whose calendar boundary has passed. Caller must
// hold the mutex.
func (m *MemoryUsage) record(orgID, service string, now time.Time) *usageRecord {
	key := orgID + ":" + service
	day := dayStart(now)
	month := monthStart(now)

	rec, exists := m.records[key]
	if !exists {
		rec = &usageRecord{day: day, month: month}
		m.records[key] = rec
		return rec
	}

	if !rec.day.Equal(day) {
		rec.dailyUsed = 0
		rec.day = day
	}
	if !rec.month.Equal(month) {
		rec.monthlyUsed = 0
		rec.month = month
	}

	return rec
}

func dayStart(now time.Time) time.Time {
	t := now.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(now time.Time) time.Time {
	t := now.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
