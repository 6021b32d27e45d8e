package upstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/haukened/rr-blocklist/internal/dns/common/log"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
	"github.com/haukened/rr-blocklist/internal/dns/gateways/wire"
)

// Error message constants for consistent error handling
const (
	errCodecRequired    = "DNS codec is required"
	errUnsupportedNet   = "unsupported probe network %q"
	errFailedToConnect  = "failed to connect: %w"
	errSetDeadline      = "set deadline failed: %w"
	errEncodeFailed     = "encode failed: %w"
	errWriteFailed      = "write failed: %w"
	errReadFailed       = "read failed: %w"
	errDecodeFailed     = "decode failed: %w"
	errExchangeFailed   = "exchange failed: %w"
	errNilReply         = "empty reply"
	errRateLimitAborted = "rate limiter: %w"
)

// Network names accepted by NewExchanger.
const (
	NetUDP    = "udp"
	NetTCP    = "tcp"
	NetTCPTLS = "tcp-tls"
)

// Exchanger sends one question to one server and returns the decoded reply.
// The context deadline bounds the whole exchange.
type Exchanger interface {
	Exchange(ctx context.Context, server string, q domain.Question) (domain.Reply, error)
}

// DialFunc defines a function type for establishing a network connection.
// It takes a context for cancellation, the network type (e.g., "tcp", "udp"),
// and the address to connect to, returning a net.Conn and an error if any occurs.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ExchangerOptions selects and configures an Exchanger.
type ExchangerOptions struct {
	Net     string        // udp (default), tcp or tcp-tls
	Timeout time.Duration // upper bound used by the miekg client
	Logger  log.Logger
	// injected for testing purposes
	Codec  wire.DNSCodec
	Dial   DialFunc
	Client DNSClient
}

// NewExchanger builds the UDP codec exchanger or, for tcp and tcp-tls, a
// miekg/dns client exchanger.
func NewExchanger(opts ExchangerOptions) (Exchanger, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	switch opts.Net {
	case "", NetUDP:
		if opts.Codec == nil {
			opts.Codec = wire.NewUDPCodec(opts.Logger)
		}
		return NewUDPExchanger(opts.Codec, opts.Dial)
	case NetTCP, NetTCPTLS:
		if opts.Client == nil {
			opts.Client = newDNSClient(opts.Net, opts.Timeout)
		}
		return NewClientExchanger(opts.Client), nil
	default:
		return nil, fmt.Errorf(errUnsupportedNet, opts.Net)
	}
}
