package validator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-blocklist/internal/dns/common/clock"
	"github.com/haukened/rr-blocklist/internal/dns/common/log"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

const (
	defaultWorkers       = 32
	defaultProgressEvery = 100

	// OutcomeInvalid labels domains no pool could resolve.
	OutcomeInvalid = "invalid"
)

// Prober reports whether a name resolves against a pool.
type Prober interface {
	Probe(ctx context.Context, name string, pool domain.Pool) bool
}

// OutcomeObserver receives one outcome per domain: the name of the pool
// that validated it, or OutcomeInvalid.
type OutcomeObserver interface {
	ObserveOutcome(outcome string)
}

type SchedulerOptions struct {
	Prober        Prober
	Primary       domain.Pool
	Secondary     domain.Pool // optional fallback
	Workers       int
	ProgressEvery int64
	Observer      OutcomeObserver
	Logger        log.Logger
	Clock         clock.Clock
}

// Scheduler classifies every domain of a set exactly once, primary pool
// first and secondary pool as fallback.
type Scheduler struct {
	prober        Prober
	primary       domain.Pool
	secondary     domain.Pool
	workers       int
	progressEvery int64
	observer      OutcomeObserver
	logger        log.Logger
	clock         clock.Clock
}

// Result is the outcome of one Validate run.
type Result struct {
	Valid       []string // sorted
	Counters    domain.CounterSnapshot
	Elapsed     time.Duration
	Interrupted bool // ctx was cancelled; domains after that point were not probed
}

func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	if err := opts.Primary.Validate(); err != nil {
		return nil, fmt.Errorf("primary pool: %w", err)
	}
	if len(opts.Secondary.Servers) > 0 {
		if err := opts.Secondary.Validate(); err != nil {
			return nil, fmt.Errorf("secondary pool: %w", err)
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Scheduler{
		prober:        opts.Prober,
		primary:       opts.Primary,
		secondary:     opts.Secondary,
		workers:       opts.Workers,
		progressEvery: opts.ProgressEvery,
		observer:      opts.Observer,
		logger:        opts.Logger,
		clock:         opts.Clock,
	}, nil
}

// Validate probes every domain and returns the valid ones. Probe failures
// never abort the run. When ctx is cancelled the remaining domains are
// counted as invalid without network I/O and Result.Interrupted is set.
func (s *Scheduler) Validate(ctx context.Context, domains domain.Set) Result {
	start := s.clock.Now()
	names := domains.Sorted()
	counters := domain.NewCounters(len(names))

	s.logger.Info(map[string]any{
		"total":     len(names),
		"workers":   s.workers,
		"primary":   s.primary.Servers,
		"secondary": s.secondary.Servers,
	}, "validation_start")

	var (
		mu    sync.Mutex
		valid = make([]string, 0, len(names))
	)
	jobs := make(chan string)

	var g errgroup.Group
	for range min(s.workers, len(names)) {
		g.Go(func() error {
			for name := range jobs {
				ok := s.classify(ctx, name)
				if ok {
					mu.Lock()
					valid = append(valid, name)
					mu.Unlock()
				}
				processed := counters.Record(ok)
				if processed%s.progressEvery == 0 || processed == int64(len(names)) {
					snap := counters.Snapshot()
					p := Report(snap.Processed, snap.Total, snap.Valid, clock.Since(s.clock, start))
					s.logger.Info(p.Fields(), p.String())
				}
			}
			return nil
		})
	}
	for _, name := range names {
		jobs <- name
	}
	close(jobs)
	_ = g.Wait()

	sort.Strings(valid)
	res := Result{
		Valid:       valid,
		Counters:    counters.Snapshot(),
		Elapsed:     clock.Since(s.clock, start),
		Interrupted: ctx.Err() != nil,
	}

	sum := Summary(res.Counters.Valid, res.Counters.Total)
	fields := sum.Fields()
	fields["elapsed"] = res.Elapsed.Round(time.Millisecond).String()
	if res.Interrupted {
		fields["interrupted"] = true
		s.logger.Warn(fields, sum.String())
	} else {
		s.logger.Info(fields, sum.String())
	}
	return res
}

// classify asks the primary pool, then the secondary pool.
func (s *Scheduler) classify(ctx context.Context, name string) bool {
	if ctx.Err() != nil {
		s.observe(OutcomeInvalid)
		return false
	}
	if s.prober.Probe(ctx, name, s.primary) {
		s.observe(s.primary.Name)
		return true
	}
	if len(s.secondary.Servers) > 0 && s.prober.Probe(ctx, name, s.secondary) {
		s.observe(s.secondary.Name)
		return true
	}
	s.observe(OutcomeInvalid)
	return false
}

func (s *Scheduler) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveOutcome(outcome)
	}
}
