package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// CanonicalDNSName returns a DNS name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dot
func CanonicalDNSName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// ASCIIDNSName canonicalizes name and converts internationalized labels to
// their punycode form. Pure ASCII names are returned without IDNA checks so
// that names the lookup profile would reject (underscores, double hyphens)
// still reach the resolvers.
func ASCIIDNSName(name string) (string, error) {
	name = CanonicalDNSName(name)
	if isASCII(name) {
		return name, nil
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", err
	}
	return CanonicalDNSName(ascii), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
