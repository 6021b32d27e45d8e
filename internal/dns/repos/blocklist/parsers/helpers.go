package parsers

import (
	"strings"

	"github.com/haukened/rr-blocklist/internal/dns/common/utils"
)

const (
	rulePrefix     = "||"
	ruleTerminator = '^'
)

// extractRuleName returns the name between a leading "||" and the first "^".
// The name must be non-empty and must not contain '/'. Anything after the
// terminator (options such as "$third-party") is ignored.
func extractRuleName(line string) (string, bool) {
	if !strings.HasPrefix(line, rulePrefix) {
		return "", false
	}
	rest := line[len(rulePrefix):]
	end := strings.IndexAny(rest, "/^")
	if end <= 0 || rest[end] != ruleTerminator {
		return "", false
	}
	return rest[:end], true
}

// isSkippable reports blank lines, "!" comments and "#" cosmetic or comment lines.
func isSkippable(line string) bool {
	return line == "" || line[0] == '!' || line[0] == '#'
}

// isValidFQDN checks whether the provided string is a valid Fully Qualified Domain Name (FQDN).
// It enforces the following rules:
//   - The total length must not exceed 253 characters.
//   - The name must contain at least two labels.
//   - Each label must be between 1 and 63 characters long.
//   - No label may contain a wildcard or whitespace.
func isValidFQDN(name string) bool {
	if len(name) > 253 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
		if strings.ContainsAny(label, "* \t") {
			return false
		}
	}
	return true
}

// normalizeDomainName lowercases name, strips the trailing dot and converts
// internationalized labels to punycode. It returns "" for names IDNA rejects.
func normalizeDomainName(name string) string {
	ascii, err := utils.ASCIIDNSName(name)
	if err != nil {
		return ""
	}
	return ascii
}
