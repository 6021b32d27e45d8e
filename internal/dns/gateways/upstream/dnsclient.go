package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

// DNSClient is the subset of *dns.Client used here; tests substitute it.
type DNSClient interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// ClientExchanger exchanges over TCP or DNS-over-TLS using miekg/dns.
type ClientExchanger struct {
	client DNSClient
}

// NewClientExchanger wraps client.
func NewClientExchanger(client DNSClient) *ClientExchanger {
	return &ClientExchanger{client: client}
}

func newDNSClient(network string, timeout time.Duration) *dns.Client {
	// per-query deadlines come from the context; Timeout is only a backstop
	return &dns.Client{Net: network, Timeout: timeout}
}

// Exchange sends q to server and counts answers of the question type.
func (e *ClientExchanger) Exchange(ctx context.Context, server string, q domain.Question) (domain.Reply, error) {
	if err := q.Validate(); err != nil {
		return domain.Reply{}, fmt.Errorf(errEncodeFailed, err)
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(q.Name), uint16(q.Type))
	m.Id = q.ID

	resp, _, err := e.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return domain.Reply{}, fmt.Errorf(errExchangeFailed, err)
	}
	if resp == nil {
		return domain.Reply{}, fmt.Errorf(errNilReply)
	}

	reply := domain.Reply{ID: resp.Id, RCode: domain.RCode(resp.Rcode)}
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype == uint16(q.Type) {
			reply.Answers++
		}
	}
	return reply, nil
}

var _ Exchanger = (*ClientExchanger)(nil)
