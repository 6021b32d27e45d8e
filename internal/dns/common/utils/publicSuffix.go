package utils

import "golang.org/x/net/publicsuffix"

// IsPublicSuffix reports whether name is itself a public suffix such as
// "com" or "co.uk". Blocking one of these would block a whole registry.
func IsPublicSuffix(name string) bool {
	name = CanonicalDNSName(name)
	if name == "" {
		return false
	}
	suffix, _ := publicsuffix.PublicSuffix(name)
	return suffix == name
}
