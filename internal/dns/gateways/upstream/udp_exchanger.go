package upstream

import (
	"context"
	"fmt"
	"net"

	"github.com/haukened/rr-blocklist/internal/dns/domain"
	"github.com/haukened/rr-blocklist/internal/dns/gateways/wire"
)

// UDPExchanger performs a single DNS exchange over a connected UDP socket.
type UDPExchanger struct {
	codec wire.DNSCodec
	dial  DialFunc
}

// NewUDPExchanger returns an exchanger using codec for the wire format.
// A nil dial uses net.Dialer.
func NewUDPExchanger(codec wire.DNSCodec, dial DialFunc) (*UDPExchanger, error) {
	if codec == nil {
		return nil, fmt.Errorf(errCodecRequired)
	}
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	return &UDPExchanger{codec: codec, dial: dial}, nil
}

// Exchange sends q to server and waits for the reply or the context deadline.
func (e *UDPExchanger) Exchange(ctx context.Context, server string, q domain.Question) (domain.Reply, error) {
	queryBytes, err := e.codec.EncodeQuery(q)
	if err != nil {
		return domain.Reply{}, fmt.Errorf(errEncodeFailed, err)
	}

	conn, err := e.dial(ctx, "udp", server)
	if err != nil {
		return domain.Reply{}, fmt.Errorf(errFailedToConnect, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return domain.Reply{}, fmt.Errorf(errSetDeadline, err)
		}
	}

	type result struct {
		reply domain.Reply
		err   error
	}
	resultChan := make(chan result, 1)

	go func() {
		if _, err := conn.Write(queryBytes); err != nil {
			resultChan <- result{err: fmt.Errorf(errWriteFailed, err)}
			return
		}

		buffer := make([]byte, wire.MaxUDPMessageSize)
		n, err := conn.Read(buffer)
		if err != nil {
			resultChan <- result{err: fmt.Errorf(errReadFailed, err)}
			return
		}

		reply, err := e.codec.DecodeResponse(buffer[:n], q)
		if err != nil {
			err = fmt.Errorf(errDecodeFailed, err)
		}
		resultChan <- result{reply: reply, err: err}
	}()

	// the deferred Close unblocks the reader if the context wins
	select {
	case res := <-resultChan:
		return res.reply, res.err
	case <-ctx.Done():
		return domain.Reply{}, ctx.Err()
	}
}

var _ Exchanger = (*UDPExchanger)(nil)
