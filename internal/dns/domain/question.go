package domain

import "fmt"

// Question is a single DNS question sent to a resolver.
type Question struct {
	ID   uint16
	Name string // canonical, no trailing dot
	Type RRType
}

// NewQuestion constructs a Question and validates its fields.
func NewQuestion(id uint16, name string, rrtype RRType) (Question, error) {
	q := Question{
		ID:   id,
		Name: name,
		Type: rrtype,
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate checks whether the Question fields are usable on the wire.
func (q Question) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("query name must not be empty")
	}
	if q.Type == 0 {
		return fmt.Errorf("query type must be set")
	}
	return nil
}

// Reply is the part of a DNS response the probe cares about.
type Reply struct {
	ID      uint16
	RCode   RCode
	Answers int // records in the answer section matching the question type
}
