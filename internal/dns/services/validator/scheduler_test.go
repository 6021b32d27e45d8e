package validator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-blocklist/internal/dns/common/clock"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
	"github.com/haukened/rr-blocklist/internal/dns/gateways/upstream"
)

var (
	primaryPool   = domain.Pool{Name: "primary", Servers: []string{"114.114.114.114:53", "223.5.5.5:53"}}
	secondaryPool = domain.Pool{Name: "secondary", Servers: []string{"8.8.8.8:53"}}
)

// poolProber resolves a name when it is listed for the pool.
type poolProber struct {
	resolves map[string]domain.Set
	calls    atomic.Int64
}

func (p *poolProber) Probe(ctx context.Context, name string, pool domain.Pool) bool {
	p.calls.Add(1)
	return p.resolves[pool.Name].Has(name)
}

type recordingLogger struct {
	mu       sync.Mutex
	progress []map[string]any
	summary  map[string]any
	warned   bool
}

func (l *recordingLogger) Info(fields map[string]any, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := fields["processed"]; ok {
		l.progress = append(l.progress, fields)
	}
	if _, ok := fields["valid_percent"]; ok {
		l.summary = fields
	}
}

func (l *recordingLogger) Warn(fields map[string]any, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warned = true
	l.summary = fields
}

func (l *recordingLogger) Error(map[string]any, string) {}
func (l *recordingLogger) Debug(map[string]any, string) {}
func (l *recordingLogger) Panic(map[string]any, string) {}
func (l *recordingLogger) Fatal(map[string]any, string) {}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) ObserveOutcome(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome]++
}

func newTestScheduler(t *testing.T, p Prober, mutate func(*SchedulerOptions)) *Scheduler {
	t.Helper()
	opts := SchedulerOptions{
		Prober:    p,
		Primary:   primaryPool,
		Secondary: secondaryPool,
		Workers:   4,
		Clock:     &clock.MockClock{CurrentTime: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)},
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewScheduler(opts)
	require.NoError(t, err)
	return s
}

func TestNewScheduler(t *testing.T) {
	_, err := NewScheduler(SchedulerOptions{Primary: primaryPool})
	assert.Error(t, err)

	_, err = NewScheduler(SchedulerOptions{Prober: &poolProber{}})
	assert.ErrorContains(t, err, "primary pool")

	_, err = NewScheduler(SchedulerOptions{
		Prober:    &poolProber{},
		Primary:   primaryPool,
		Secondary: domain.Pool{Servers: []string{"8.8.8.8:53"}},
	})
	assert.ErrorContains(t, err, "secondary pool")

	s, err := NewScheduler(SchedulerOptions{Prober: &poolProber{}, Primary: primaryPool})
	require.NoError(t, err)
	assert.Equal(t, defaultWorkers, s.workers)
	assert.Equal(t, int64(defaultProgressEvery), s.progressEvery)
}

func TestScheduler_Validate_FallsBackToSecondary(t *testing.T) {
	p := &poolProber{resolves: map[string]domain.Set{
		"primary":   domain.NewSet("a.com"),
		"secondary": domain.NewSet("b.com"),
	}}
	obs := &outcomeCounter{}
	s := newTestScheduler(t, p, func(o *SchedulerOptions) { o.Observer = obs })

	res := s.Validate(context.Background(), domain.NewSet("a.com", "b.com"))

	assert.Equal(t, []string{"a.com", "b.com"}, res.Valid)
	assert.Equal(t, domain.CounterSnapshot{Total: 2, Processed: 2, Valid: 2}, res.Counters)
	assert.False(t, res.Interrupted)
	assert.Equal(t, map[string]int{"primary": 1, "secondary": 1}, obs.counts)
	// a.com: primary only; b.com: primary then secondary
	assert.Equal(t, int64(3), p.calls.Load())
}

func TestScheduler_Validate_PrimarySuccessIgnoresSecondary(t *testing.T) {
	p := &poolProber{resolves: map[string]domain.Set{"primary": domain.NewSet("a.com", "b.com")}}
	s := newTestScheduler(t, p, nil)

	res := s.Validate(context.Background(), domain.NewSet("a.com", "b.com"))

	assert.Equal(t, []string{"a.com", "b.com"}, res.Valid)
	assert.Equal(t, int64(2), p.calls.Load())
}

func TestScheduler_Validate_AllPoolsFail(t *testing.T) {
	obs := &outcomeCounter{}
	s := newTestScheduler(t, &poolProber{}, func(o *SchedulerOptions) { o.Observer = obs })

	res := s.Validate(context.Background(), domain.NewSet("dead.example"))

	assert.Empty(t, res.Valid)
	assert.Equal(t, int64(1), res.Counters.Invalid())
	assert.Equal(t, map[string]int{OutcomeInvalid: 1}, obs.counts)
}

func TestScheduler_Validate_NoSecondaryPool(t *testing.T) {
	p := &poolProber{resolves: map[string]domain.Set{"secondary": domain.NewSet("b.com")}}
	s := newTestScheduler(t, p, func(o *SchedulerOptions) { o.Secondary = domain.Pool{} })

	res := s.Validate(context.Background(), domain.NewSet("b.com"))
	assert.Empty(t, res.Valid)
	assert.Equal(t, int64(1), p.calls.Load())
}

func TestScheduler_Validate_EmptySet(t *testing.T) {
	logger := &recordingLogger{}
	p := &poolProber{}
	s := newTestScheduler(t, p, func(o *SchedulerOptions) { o.Logger = logger })

	res := s.Validate(context.Background(), domain.NewSet())

	assert.Empty(t, res.Valid)
	assert.Equal(t, domain.CounterSnapshot{}, res.Counters)
	assert.Zero(t, p.calls.Load())
	assert.Empty(t, logger.progress)
	require.NotNil(t, logger.summary)
	assert.Equal(t, 0.0, logger.summary["valid_percent"])
}

func TestScheduler_Validate_ProgressCadence(t *testing.T) {
	names := []string{"a.com", "b.com", "c.com", "d.com", "e.com"}
	p := &poolProber{resolves: map[string]domain.Set{"primary": domain.NewSet("a.com", "c.com")}}
	logger := &recordingLogger{}
	s := newTestScheduler(t, p, func(o *SchedulerOptions) {
		o.Logger = logger
		o.ProgressEvery = 2
		o.Workers = 1
	})

	res := s.Validate(context.Background(), domain.NewSet(names...))
	assert.Equal(t, []string{"a.com", "c.com"}, res.Valid)

	require.Len(t, logger.progress, 3, "reports at 2, 4 and the final domain")
	seen := map[int64]bool{}
	for _, f := range logger.progress {
		processed := f["processed"].(int64)
		seen[processed] = true
		assert.Equal(t, int64(5), f["total"])
		assert.LessOrEqual(t, f["valid"].(int64), processed)
	}
	assert.Equal(t, map[int64]bool{2: true, 4: true, 5: true}, seen)

	assert.Equal(t, int64(2), logger.summary["valid"])
	assert.Equal(t, int64(3), logger.summary["invalid"])
	assert.Equal(t, 40.0, logger.summary["valid_percent"])
}

func TestScheduler_Validate_ProgressLinesConsistent(t *testing.T) {
	set := domain.NewSet()
	resolving := domain.NewSet()
	for i := range 2000 {
		name := fmt.Sprintf("d%d.example", i)
		set.Add(name)
		if i%2 == 0 {
			resolving.Add(name)
		}
	}
	p := &poolProber{resolves: map[string]domain.Set{"primary": resolving}}
	logger := &recordingLogger{}
	s := newTestScheduler(t, p, func(o *SchedulerOptions) {
		o.Logger = logger
		o.ProgressEvery = 1
		o.Workers = 64
	})

	s.Validate(context.Background(), set)

	require.NotEmpty(t, logger.progress)
	for _, f := range logger.progress {
		processed := f["processed"].(int64)
		assert.GreaterOrEqual(t, f["invalid"].(int64), int64(0))
		assert.LessOrEqual(t, f["valid"].(int64), processed)
		assert.LessOrEqual(t, processed, int64(2000))
		assert.Equal(t, processed, f["valid"].(int64)+f["invalid"].(int64))
	}
}

func TestScheduler_Validate_Idempotent(t *testing.T) {
	set := domain.NewSet()
	resolving := domain.NewSet()
	for i := range 200 {
		name := string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".example"
		set.Add(name)
		if i%3 == 0 {
			resolving.Add(name)
		}
	}
	p := &poolProber{resolves: map[string]domain.Set{"secondary": resolving}}
	s := newTestScheduler(t, p, func(o *SchedulerOptions) { o.Workers = 16 })

	first := s.Validate(context.Background(), set)
	second := s.Validate(context.Background(), set)

	assert.Equal(t, first.Valid, second.Valid)
	assert.Equal(t, resolving.Sorted(), first.Valid)
	for _, v := range first.Valid {
		assert.True(t, set.Has(v), "valid set must be a subset of the input")
	}
}

func TestScheduler_Validate_CancelledContext(t *testing.T) {
	p := &poolProber{resolves: map[string]domain.Set{"primary": domain.NewSet("a.com", "b.com")}}
	logger := &recordingLogger{}
	s := newTestScheduler(t, p, func(o *SchedulerOptions) { o.Logger = logger })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Validate(ctx, domain.NewSet("a.com", "b.com", "c.com"))

	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Valid)
	assert.Equal(t, int64(3), res.Counters.Processed)
	assert.Zero(t, p.calls.Load())
	assert.True(t, logger.warned)
}

// scriptedExchanger answers A queries for names listed per server and
// fails every other server with a timeout.
type scriptedExchanger struct {
	answers map[string]domain.Set
}

func (e *scriptedExchanger) Exchange(ctx context.Context, server string, q domain.Question) (domain.Reply, error) {
	names, ok := e.answers[server]
	if !ok {
		return domain.Reply{}, context.DeadlineExceeded
	}
	if names.Has(q.Name) {
		return domain.Reply{ID: q.ID, RCode: domain.RCodeNoError, Answers: 1}, nil
	}
	return domain.Reply{ID: q.ID, RCode: domain.RCodeNXDomain}, nil
}

type countingLimiter struct{ waits atomic.Int64 }

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

func TestScheduler_WithUpstreamProber(t *testing.T) {
	ex := &scriptedExchanger{answers: map[string]domain.Set{
		"223.5.5.5:53": domain.NewSet("a.com"),
		"8.8.8.8:53":   domain.NewSet("b.com"),
	}}
	lim := &countingLimiter{}
	prober, err := upstream.NewProber(upstream.ProberOptions{
		Exchanger: ex,
		Timeout:   time.Second,
		Limiter:   lim,
	})
	require.NoError(t, err)
	s := newTestScheduler(t, prober, nil)

	res := s.Validate(context.Background(), domain.NewSet("a.com", "b.com", "dead.example"))

	assert.Equal(t, []string{"a.com", "b.com"}, res.Valid)
	// a.com: 2 primary; b.com: 2 primary + 1 secondary; dead.example: 2 + 1
	assert.Equal(t, int64(8), lim.waits.Load())
}
