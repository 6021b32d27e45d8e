package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/haukened/rr-blocklist/internal/dns/config"
)

const feedBody = `! Title: test feed
||a.com^
||b.com^$third-party
||dead.example^
||a.com/ads^
`

// startResolver serves A records for the listed names and NXDOMAIN otherwise.
func startResolver(t *testing.T, names ...string) string {
	t.Helper()
	known := map[string]bool{}
	for _, n := range names {
		known[dns.Fqdn(n)] = true
	}

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			q := r.Question[0]
			if known[q.Name] && q.Qtype == dns.TypeA {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.IPv4(192, 0, 2, 1),
				})
			} else {
				m.Rcode = dns.RcodeNameError
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("resolver did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func startFeed(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, feedBody)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func testConfig(t *testing.T, feedURL, primary, secondary string) *config.AppConfig {
	t.Helper()
	cfg := config.DEFAULT_APP_CONFIG
	dir := t.TempDir()
	cfg.Feeds = []string{feedURL + "/feed.txt", feedURL + "/missing.txt"}
	cfg.Primary = []string{primary}
	cfg.Secondary = []string{secondary}
	cfg.ProbeTimeout = 500 * time.Millisecond
	cfg.Workers = 4
	cfg.QPS = 1000
	cfg.Output = filepath.Join(dir, "final_rules.txt")
	cfg.MetricsFile = filepath.Join(dir, "rr_blocklist.prom")
	return &cfg
}

func TestApplication_Run(t *testing.T) {
	feedURL := startFeed(t)
	primary := startResolver(t, "a.com")
	secondary := startResolver(t, "b.com")

	cfg := testConfig(t, feedURL, primary, secondary)
	app, err := buildApplication(cfg)
	require.NoError(t, err)

	require.NoError(t, app.Run(context.Background()))

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, "||a.com^\n||b.com^", string(data))

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `rr_blocklist_domains_total{outcome="primary"} 1`)
	assert.Contains(t, string(prom), `rr_blocklist_domains_total{outcome="secondary"} 1`)
	assert.Contains(t, string(prom), `rr_blocklist_domains_total{outcome="invalid"} 1`)
	assert.Contains(t, string(prom), `rr_blocklist_probe_attempts_total{pool="primary",status="rejected"} 2`)
	assert.Contains(t, string(prom), `rr_blocklist_probe_attempts_total{pool="secondary",status="rejected"} 1`)
	assert.Contains(t, string(prom), `rr_blocklist_feeds_total{result="error"} 1`)
	assert.Contains(t, string(prom), "rr_blocklist_run_interrupted 0")
}

func TestApplication_Run_Interrupted(t *testing.T) {
	feedURL := startFeed(t)
	primary := startResolver(t, "a.com")

	cfg := testConfig(t, feedURL, primary, primary)
	cfg.MetricsFile = ""
	require.NoError(t, os.WriteFile(cfg.Output, []byte("||previous.example^"), 0o644))

	app, err := buildApplication(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = app.Run(ctx)
	assert.ErrorIs(t, err, errInterrupted)

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, "||previous.example^", string(data), "an interrupted run must keep the previous rule file")
}

func TestApplication_Run_NoDomains(t *testing.T) {
	feedURL := startFeed(t)
	cfg := testConfig(t, feedURL, "127.0.0.1:1", "127.0.0.1:1")
	cfg.Feeds = []string{feedURL + "/missing.txt"}
	cfg.MetricsFile = ""

	app, err := buildApplication(cfg)
	require.NoError(t, err)
	require.NoError(t, app.Run(context.Background()))

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestBuildApplication_InvalidPools(t *testing.T) {
	cfg := config.DEFAULT_APP_CONFIG
	cfg.Primary = []string{"resolver.example"}

	_, err := buildApplication(&cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "resolver pools"))
}

func TestBuildApplication_InvalidProbeNet(t *testing.T) {
	cfg := config.DEFAULT_APP_CONFIG
	cfg.ProbeNet = "quic"

	_, err := buildApplication(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchanger")
}

func TestNewLimiter(t *testing.T) {
	tests := []struct {
		qps   float64
		burst int
	}{
		{100, 10},
		{25, 2},
		{5, 1},
		{0.5, 1},
	}
	for _, tt := range tests {
		l := newLimiter(tt.qps)
		assert.Equal(t, rate.Limit(tt.qps), l.Limit())
		assert.Equal(t, tt.burst, l.Burst())
	}
}
