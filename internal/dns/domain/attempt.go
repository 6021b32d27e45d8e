package domain

import (
	"fmt"
	"time"
)

// AttemptStatus classifies a single query against a single resolver.
type AttemptStatus uint8

const (
	// AttemptAnswered: the resolver replied with at least one record of the asked type.
	AttemptAnswered AttemptStatus = iota
	// AttemptNoAnswer: NOERROR reply without a matching record.
	AttemptNoAnswer
	// AttemptRejected: the resolver replied with any other rcode (NXDOMAIN,
	// SERVFAIL, REFUSED, ...).
	AttemptRejected
	// AttemptTimeout: no reply before the per-query deadline.
	AttemptTimeout
	// AttemptError: dial, write, read or decode failure, or a cancelled run.
	AttemptError
)

// String returns a stable label, also used as a metrics label value.
func (s AttemptStatus) String() string {
	switch s {
	case AttemptAnswered:
		return "answered"
	case AttemptNoAnswer:
		return "no_answer"
	case AttemptRejected:
		return "rejected"
	case AttemptTimeout:
		return "timeout"
	case AttemptError:
		return "error"
	default:
		return fmt.Sprintf("AttemptStatus(%d)", s)
	}
}

// Attempt is the outcome of one query against one resolver.
type Attempt struct {
	Server string
	Status AttemptStatus
	RCode  RCode // meaningful only when a reply was received
	RTT    time.Duration
	Err    error
}

// Completed reports whether a reply was received at all.
func (a Attempt) Completed() bool {
	switch a.Status {
	case AttemptAnswered, AttemptNoAnswer, AttemptRejected:
		return true
	}
	return false
}

// Resolved reports whether this attempt counts as a positive signal.
// A NOERROR reply without answers counts unless strict is set.
func (a Attempt) Resolved(strict bool) bool {
	if strict {
		return a.Status == AttemptAnswered
	}
	return a.Status == AttemptAnswered || a.Status == AttemptNoAnswer
}

// AttemptFromReply classifies a decoded reply. Answers must already be
// filtered to the question type by the codec.
func AttemptFromReply(server string, reply Reply, rtt time.Duration) Attempt {
	status := AttemptRejected
	if reply.RCode == RCodeNoError {
		status = AttemptNoAnswer
		if reply.Answers > 0 {
			status = AttemptAnswered
		}
	}
	return Attempt{Server: server, Status: status, RCode: reply.RCode, RTT: rtt}
}
