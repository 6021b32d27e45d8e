package wire

import (
	"errors"

	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

var (
	// ErrIDMismatch is returned when a reply does not carry the query's ID.
	ErrIDMismatch = errors.New("response ID mismatch")
	// ErrNotResponse is returned when the QR bit of a reply is not set.
	ErrNotResponse = errors.New("message is not a response")
)

// DNSCodec encodes probe questions and decodes the replies to them.
type DNSCodec interface {
	EncodeQuery(query domain.Question) ([]byte, error)
	DecodeResponse(data []byte, query domain.Question) (domain.Reply, error)
}
