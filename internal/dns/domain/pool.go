package domain

import "fmt"

// Pool is an ordered list of resolver addresses ("ip:port").
// Order is probe precedence within the pool.
type Pool struct {
	Name    string
	Servers []string
}

// NewPool constructs a Pool and validates it.
func NewPool(name string, servers []string) (Pool, error) {
	p := Pool{Name: name, Servers: append([]string(nil), servers...)}
	if err := p.Validate(); err != nil {
		return Pool{}, err
	}
	return p, nil
}

// Validate checks that the pool is named and has at least one server.
func (p Pool) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pool name must not be empty")
	}
	if len(p.Servers) == 0 {
		return fmt.Errorf("pool %q has no servers", p.Name)
	}
	for i, s := range p.Servers {
		if s == "" {
			return fmt.Errorf("pool %q server %d is empty", p.Name, i)
		}
	}
	return nil
}
