package utils

import (
	"fmt"
	"net"
	"strconv"
)

const (
	// DefaultDNSPort is appended to plain DNS resolver addresses given as a bare IP.
	DefaultDNSPort = "53"
	// DefaultDoTPort is appended to DNS-over-TLS resolver addresses given as a bare IP.
	DefaultDoTPort = "853"
)

// NormalizeResolverAddr accepts "IP" or "IP:port" (IPv6 as "[::1]:53") and
// returns the "IP:port" form used for dialing. Bare IPs get port 53.
func NormalizeResolverAddr(addr string) (string, error) {
	return NormalizeResolverAddrPort(addr, DefaultDNSPort)
}

// NormalizeResolverAddrPort is NormalizeResolverAddr with a caller-chosen
// default port.
func NormalizeResolverAddrPort(addr, defaultPort string) (string, error) {
	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(ip.String(), defaultPort), nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("resolver %q: %w", addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("resolver %q: host is not an IP address", addr)
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	if err != nil || portNum == 0 {
		return "", fmt.Errorf("resolver %q: invalid port %q", addr, port)
	}
	return net.JoinHostPort(ip.String(), port), nil
}

// NormalizeResolverAddrs normalizes every address, failing on the first bad one.
func NormalizeResolverAddrs(addrs []string, defaultPort string) ([]string, error) {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		n, err := NormalizeResolverAddrPort(a, defaultPort)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
