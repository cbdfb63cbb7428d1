// Package pipeline orchestrates the address-to-market-record lookup workflow.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/marketdata/internal/model"
)

var (
	addressPunct = regexp.MustCompile(`[^a-z0-9\s]+`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// NormalizeAddress reduces an address to a stable cache-key form: lowercase,
// punctuation stripped, whitespace collapsed. "123 Main St., Apt #4" and
// "123 main st apt 4" normalize identically.
func NormalizeAddress(address string) string {
	s := strings.ToLower(address)
	s = addressPunct.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CacheKey returns the store key for an address. The schema version is part of
// the key, so bumping model.SchemaVersion orphans all prior entries instead of
// requiring a migration.
func CacheKey(address string) string {
	return fmt.Sprintf("%s|v%d", NormalizeAddress(address), model.SchemaVersion)
}
