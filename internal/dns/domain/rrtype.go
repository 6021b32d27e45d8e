package domain

import "fmt"

// RRType represents a DNS resource record type.
// Only the types the probe asks for or inspects in replies are named.
type RRType uint16

const (
	RRTypeA     RRType = 1  // A - IPv4 address
	RRTypeCNAME RRType = 5  // CNAME - Canonical name
	RRTypeAAAA  RRType = 28 // AAAA - IPv6 address
)

// RRClassIN is the Internet class; the only class the probe queries.
const RRClassIN uint16 = 1

// String returns the textual representation of the RRType.
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeCNAME:
		return "CNAME"
	case RRTypeAAAA:
		return "AAAA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}
