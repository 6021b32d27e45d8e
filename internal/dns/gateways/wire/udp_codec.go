// Package wire provides encoding and decoding of DNS messages for UDP transport,
// built on golang.org/x/net/dns/dnsmessage.
package wire

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/haukened/rr-blocklist/internal/dns/common/log"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

// MaxUDPMessageSize is the classic DNS over UDP payload limit (no EDNS0).
const MaxUDPMessageSize = 512

// udpCodec implements DNSCodec for standard DNS over UDP messages.
type udpCodec struct {
	logger log.Logger
}

// NewUDPCodec creates a codec that logs decode anomalies to logger.
func NewUDPCodec(logger log.Logger) *udpCodec {
	return &udpCodec{
		logger: logger,
	}
}

// EncodeQuery serializes a recursive IN-class query for query.Name.
func (c *udpCodec) EncodeQuery(query domain.Question) ([]byte, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	fqdn := strings.TrimSuffix(query.Name, ".")
	for _, label := range strings.Split(fqdn, ".") {
		if len(label) > 63 {
			return nil, fmt.Errorf("label too long: %s", label)
		}
		if len(label) == 0 {
			return nil, fmt.Errorf("empty label in %q", query.Name)
		}
	}
	name, err := dnsmessage.NewName(fqdn + ".")
	if err != nil {
		return nil, fmt.Errorf("invalid name %q: %w", query.Name, err)
	}

	msg := dnsmessage.Message{
		Header: dnsmessage.Header{
			ID:               query.ID,
			RecursionDesired: true,
		},
		Questions: []dnsmessage.Question{{
			Name:  name,
			Type:  dnsmessage.Type(query.Type),
			Class: dnsmessage.Class(domain.RRClassIN),
		}},
	}
	return msg.Pack()
}

// DecodeResponse parses a reply to query. Only the header and the answer
// section headers are inspected; Answers counts records of the asked type.
func (c *udpCodec) DecodeResponse(data []byte, query domain.Question) (domain.Reply, error) {
	var p dnsmessage.Parser
	h, err := p.Start(data)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("parse header: %w", err)
	}
	if h.ID != query.ID {
		return domain.Reply{}, fmt.Errorf("%w: got %d, want %d", ErrIDMismatch, h.ID, query.ID)
	}
	if !h.Response {
		return domain.Reply{}, ErrNotResponse
	}
	if err := p.SkipAllQuestions(); err != nil {
		return domain.Reply{}, fmt.Errorf("parse questions: %w", err)
	}

	reply := domain.Reply{ID: h.ID, RCode: domain.RCode(h.RCode)}
	want := dnsmessage.Type(query.Type)
	for {
		ah, err := p.AnswerHeader()
		if errors.Is(err, dnsmessage.ErrSectionDone) {
			break
		}
		if err != nil {
			return domain.Reply{}, fmt.Errorf("parse answer: %w", err)
		}
		if ah.Type == want {
			reply.Answers++
		}
		if err := p.SkipAnswer(); err != nil {
			return domain.Reply{}, fmt.Errorf("skip answer: %w", err)
		}
	}

	if h.Truncated {
		c.logger.Debug(map[string]any{"name": query.Name, "answers": reply.Answers}, "truncated_reply")
	}
	return reply, nil
}

var _ DNSCodec = (*udpCodec)(nil)
