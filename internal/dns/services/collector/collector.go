package collector

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-blocklist/internal/dns/common/clock"
	"github.com/haukened/rr-blocklist/internal/dns/common/log"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
	"github.com/haukened/rr-blocklist/internal/dns/repos/blocklist/parsers"
)

const defaultConcurrency = 4

// Fetcher returns the body of one feed. The caller closes it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// ParseFunc turns a feed body into rules attributed to source.
type ParseFunc func(r io.Reader, source string, logger log.Logger, now time.Time) ([]domain.BlockRule, error)

// FeedObserver is told the outcome of every feed, e.g. for metrics.
type FeedObserver interface {
	ObserveFeed(err error)
}

// FeedResult describes the outcome for a single feed URL.
type FeedResult struct {
	URL   string
	Rules int // rules parsed from this feed, before merging
	Err   error
}

type Collector struct {
	fetcher     Fetcher
	parse       ParseFunc
	logger      log.Logger
	clock       clock.Clock
	concurrency int
	observer    FeedObserver
}

type CollectorOptions struct {
	Fetcher     Fetcher
	Parse       ParseFunc // defaults to parsers.ParseAdblockList
	Logger      log.Logger
	Clock       clock.Clock
	Concurrency int // simultaneous downloads, defaults to 4
	Observer    FeedObserver
}

func NewCollector(opts CollectorOptions) (*Collector, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Parse == nil {
		opts.Parse = parsers.ParseAdblockList
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Collector{
		fetcher:     opts.Fetcher,
		parse:       opts.Parse,
		logger:      opts.Logger,
		clock:       opts.Clock,
		concurrency: opts.Concurrency,
		observer:    opts.Observer,
	}, nil
}

// Collect downloads every feed, extracts its domains and merges them into
// one set. A failing feed is logged and skipped; it never fails the run.
// Results are returned in the order of urls.
func (c *Collector) Collect(ctx context.Context, urls []string) (domain.Set, []FeedResult) {
	results := make([]FeedResult, len(urls))
	rules := make([][]domain.BlockRule, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			rs, err := c.collectOne(gctx, url)
			results[i] = FeedResult{URL: url, Rules: len(rs), Err: err}
			rules[i] = rs
			return nil
		})
	}
	_ = g.Wait()

	set := domain.NewSet()
	for i, res := range results {
		if c.observer != nil {
			c.observer.ObserveFeed(res.Err)
		}
		if res.Err != nil {
			c.logger.Warn(map[string]any{"url": res.URL, "error": res.Err.Error()}, "feed_failed")
			continue
		}
		added := 0
		for _, r := range rules[i] {
			if set.Add(r.Name) {
				added++
			}
		}
		c.logger.Info(map[string]any{"url": res.URL, "rules": res.Rules, "new": added}, "feed_collected")
	}
	c.logger.Info(map[string]any{"feeds": len(urls), "domains": set.Len()}, "collect_done")
	return set, results
}

func (c *Collector) collectOne(ctx context.Context, url string) ([]domain.BlockRule, error) {
	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer body.Close()

	rules, err := c.parse(body, url, c.logger, c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return rules, nil
}
