package domain

import (
	"fmt"
	"strings"
	"time"
)

// BlockRule is a single `||domain^` rule extracted from a feed.
//
// Name is canonical: lowercase ASCII without a trailing dot.
// Source identifies the feed URL the rule came from.
type BlockRule struct {
	Name    string
	Source  string
	AddedAt time.Time
}

// NewBlockRule constructs a BlockRule and validates its fields.
func NewBlockRule(name, source string, addedAt time.Time) (BlockRule, error) {
	r := BlockRule{
		Name:    strings.TrimSpace(name),
		Source:  strings.TrimSpace(source),
		AddedAt: addedAt,
	}
	if err := r.Validate(); err != nil {
		return BlockRule{}, err
	}
	return r, nil
}

// Validate checks the BlockRule for required fields.
func (r BlockRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if strings.ContainsAny(r.Name, "/^|") {
		return fmt.Errorf("rule name %q contains rule syntax", r.Name)
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	return nil
}

// String renders the rule in adblock syntax.
func (r BlockRule) String() string {
	return FormatRule(r.Name)
}

// FormatRule renders name as a `||name^` rule line.
func FormatRule(name string) string {
	return "||" + name + "^"
}
