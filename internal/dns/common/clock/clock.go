package clock

import (
	"sync"
	"time"
)

// Clock is the time source used for run timing. Workers read it concurrently.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed on c since start.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// MockClock is a manually driven Clock for tests. It is safe for concurrent use.
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}
