package nlq

import (
	"regexp"
	"strings"
)

// The generated query text originates from a language model driven by
// untrusted user text, so it is treated as adversarial input. Everything
// here runs before the query gets anywhere near a connection.

var allowedTables = map[string]bool{
	"videos":          true,
	"video_snapshots": true,
}

// Word-boundary match keeps column names like video_created_at from
// tripping the CREATE check (underscore counts as a word character).
// "into" covers SELECT ... INTO, which creates a table in PostgreSQL.
var writeKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|grant|revoke|copy|merge|execute|into)\b`)

// Captures the whole comma-separated table list after from/join, aliases
// included, so old-style comma joins cannot slip an extra table past the
// allowlist.
var tableRefs = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_.]*(?:(?:\s+(?:as\s+)?[a-zA-Z_][a-zA-Z0-9_]*)?\s*,\s*[a-zA-Z_][a-zA-Z0-9_.]*)*)`)

var cteNames = regexp.MustCompile(`(?i)(?:\bwith\b|,)\s*([a-zA-Z_][a-zA-Z0-9_]*)\s+as\s*\(`)

// ValidateQuery applies the safety and shape pre-checks to a candidate
// query. A nil return means the text is a single read-only SELECT touching
// only the known tables; anything else is a validation rejection.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return failf(KindValidationRejection, "empty query")
	}

	if strings.Contains(trimmed, ";") {
		return failf(KindValidationRejection, "statement separator is not allowed")
	}

	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return failf(KindValidationRejection, "SQL comments are not allowed")
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return failf(KindValidationRejection, "only SELECT queries are allowed")
	}

	if match := writeKeywords.FindString(trimmed); match != "" {
		return failf(KindValidationRejection, "forbidden keyword %q", strings.ToUpper(match))
	}

	known := make(map[string]bool, len(allowedTables))
	for table := range allowedTables {
		known[table] = true
	}
	for _, m := range cteNames.FindAllStringSubmatch(trimmed, -1) {
		known[strings.ToLower(m[1])] = true
	}

	for _, m := range tableRefs.FindAllStringSubmatch(trimmed, -1) {
		for _, ref := range strings.Split(m[1], ",") {
			fields := strings.Fields(ref)
			if len(fields) == 0 {
				continue
			}
			name := strings.ToLower(fields[0])
			name = strings.TrimPrefix(name, "public.")
			if strings.Contains(name, ".") {
				return failf(KindValidationRejection, "schema-qualified table %q is not allowed", fields[0])
			}
			if !known[name] {
				return failf(KindValidationRejection, "unknown table %q", fields[0])
			}
		}
	}

	return nil
}
