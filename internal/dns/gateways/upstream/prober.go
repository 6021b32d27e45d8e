package upstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/haukened/rr-blocklist/internal/dns/common/clock"
	"github.com/haukened/rr-blocklist/internal/dns/common/log"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

const (
	errExchangerRequired = "exchanger is required"
	defaultProbeTimeout  = 3 * time.Second
)

// Limiter gates every query. It is shared by all workers of a run.
type Limiter interface {
	Wait(ctx context.Context) error
}

// AttemptObserver is notified of every attempt, e.g. for metrics.
type AttemptObserver interface {
	ObserveAttempt(pool string, a domain.Attempt)
}

// ProberOptions configures a Prober.
type ProberOptions struct {
	Exchanger Exchanger
	Timeout   time.Duration // per query; defaults to 3s
	Strict    bool          // require an A record instead of any NOERROR reply
	Limiter   Limiter
	Observer  AttemptObserver
	Logger    log.Logger
	Clock     clock.Clock
	NewID     func() uint16
}

// Prober decides whether a name resolves against one resolver pool.
// It asks each server of the pool in order, one attempt per server.
type Prober struct {
	exchanger Exchanger
	timeout   time.Duration
	strict    bool
	limiter   Limiter
	observer  AttemptObserver
	logger    log.Logger
	clock     clock.Clock
	newID     func() uint16
}

// NewProber validates opts and fills defaults.
func NewProber(opts ProberOptions) (*Prober, error) {
	if opts.Exchanger == nil {
		return nil, fmt.Errorf(errExchangerRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProbeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.NewID == nil {
		opts.NewID = func() uint16 { return uint16(rand.Uint32()) }
	}
	return &Prober{
		exchanger: opts.Exchanger,
		timeout:   opts.Timeout,
		strict:    opts.Strict,
		limiter:   opts.Limiter,
		observer:  opts.Observer,
		logger:    opts.Logger,
		clock:     opts.Clock,
		newID:     opts.NewID,
	}, nil
}

// Probe reports whether name resolves on any server of pool.
// Failures of individual servers are never returned; they move the walk on.
func (p *Prober) Probe(ctx context.Context, name string, pool domain.Pool) bool {
	attempts := p.Attempts(ctx, name, pool)
	if len(attempts) == 0 {
		return false
	}
	return attempts[len(attempts)-1].Resolved(p.strict)
}

// Attempts walks pool in order and returns every attempt made. The walk
// ends at the first resolving attempt, after the last server, or when ctx
// is done. A query that never left because ctx ended is not an attempt.
func (p *Prober) Attempts(ctx context.Context, name string, pool domain.Pool) []domain.Attempt {
	attempts := make([]domain.Attempt, 0, len(pool.Servers))
	for _, server := range pool.Servers {
		if ctx.Err() != nil {
			break
		}
		a, sent := p.attempt(ctx, server, name)
		if !sent && ctx.Err() != nil {
			break
		}
		attempts = append(attempts, a)
		p.record(pool.Name, name, a)
		if a.Resolved(p.strict) {
			break
		}
	}
	return attempts
}

// attempt sends one query. sent is false when the limiter refused a token.
func (p *Prober) attempt(ctx context.Context, server, name string) (a domain.Attempt, sent bool) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return domain.Attempt{Server: server, Status: domain.AttemptError, Err: fmt.Errorf(errRateLimitAborted, err)}, false
		}
	}

	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q := domain.Question{ID: p.newID(), Name: name, Type: domain.RRTypeA}
	start := p.clock.Now()
	reply, err := p.exchanger.Exchange(qctx, server, q)
	rtt := clock.Since(p.clock, start)
	if err != nil {
		status := domain.AttemptError
		if isTimeout(err) {
			status = domain.AttemptTimeout
		}
		return domain.Attempt{Server: server, Status: status, RTT: rtt, Err: err}, true
	}
	return domain.AttemptFromReply(server, reply, rtt), true
}

func (p *Prober) record(pool, name string, a domain.Attempt) {
	if p.observer != nil {
		p.observer.ObserveAttempt(pool, a)
	}
	fields := map[string]any{
		"name":   name,
		"pool":   pool,
		"server": a.Server,
		"status": a.Status.String(),
		"rtt":    a.RTT,
	}
	if a.Completed() {
		fields["rcode"] = a.RCode.String()
	}
	if a.Err != nil {
		fields["error"] = a.Err.Error()
	}
	p.logger.Debug(fields, "probe_attempt")
}

// isTimeout reports deadline expiry from the context or from the socket.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
