package parser

import (
	"regexp"
	"strings"
)

// Template keys collapse variable parts of a message so that lines
// produced by the same log statement share one key. The rarity and
// temporal scorers count occurrences per key.
var (
	uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	urlPattern  = regexp.MustCompile(`https?://\S+`)
	hexPattern  = regexp.MustCompile(`\b0x[0-9a-f]+\b|\b[0-9a-f]{8,}\b`)
	numPattern  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	wsPattern   = regexp.MustCompile(`\s+`)
)

// TemplateKey normalizes a message into its template form: lowercased,
// with UUIDs, URLs, hex runs and numbers replaced by placeholders and
// whitespace collapsed. UUIDs go first since they contain hex runs.
func TemplateKey(message string) string {
	normalized := strings.ToLower(message)
	normalized = uuidPattern.ReplaceAllString(normalized, "<uuid>")
	normalized = urlPattern.ReplaceAllString(normalized, "<url>")
	normalized = hexPattern.ReplaceAllString(normalized, "<hex>")
	normalized = numPattern.ReplaceAllString(normalized, "<num>")
	normalized = wsPattern.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
