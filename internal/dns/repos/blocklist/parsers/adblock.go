package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/rr-blocklist/internal/dns/common/log"
	"github.com/haukened/rr-blocklist/internal/dns/common/utils"
	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

// ParseAdblockList extracts `||domain^` rules from an adblock-syntax list.
//
// Behavior:
// - Skips blank lines and lines starting with '!' or '#'
// - Accepts only lines of the form `||name^...`; name may not contain '/'
// - Normalizes names via ASCIIDNSName (lowercase, no trailing dot, punycode)
// - Drops wildcards, single-label names, bad label lengths and bare public suffixes
// - De-duplicates by canonical name while preserving first-seen order
// - Each rule is attributed to the provided source and timestamped with now
func ParseAdblockList(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]domain.BlockRule, 0, 1024)
	logger.Debug(map[string]any{"source": source}, "parse_adblock_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))
		if isSkippable(line) {
			continue
		}

		raw, ok := extractRuleName(line)
		if !ok {
			logger.Debug(map[string]any{"line": lineNum}, "skip_not_a_domain_rule")
			continue
		}

		name := normalizeDomainName(raw)
		if !isValidFQDN(name) {
			logger.Debug(map[string]any{"line": lineNum, "raw": raw, "name": name}, "skip_invalid_fqdn")
			continue
		}
		if utils.IsPublicSuffix(name) {
			logger.Debug(map[string]any{"line": lineNum, "name": name}, "skip_public_suffix")
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}

		rule, err := domain.NewBlockRule(name, source, now)
		if err != nil {
			logger.Debug(map[string]any{"line": lineNum, "name": name, "error": err.Error()}, "skip_constructor_error")
			continue
		}
		out = append(out, rule)
		seen[name] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_adblock_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_adblock_list_done")
	return out, nil
}
